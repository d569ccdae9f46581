package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"confidee-relayer/internal/model"
	"confidee-relayer/internal/repository"
	"confidee-relayer/internal/repository/memory"
)

func TestSessionPutGet(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := memory.NewSessionStore(func() time.Time { return now })

	want := model.Session{Address: "0xabc", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := s.Put(ctx, "tok", want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "tok")
	if err != nil {
		t.Fatal(err)
	}
	if got.Address != want.Address || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("expected %+v got %+v", want, got)
	}
}

func TestSessionExpiredNeverResurrects(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }
	s := memory.NewSessionStore(clock)

	_ = s.Put(ctx, "tok", model.Session{Address: "0xabc", ExpiresAt: now.Add(time.Second)})
	now = now.Add(2 * time.Second)

	if _, err := s.Get(ctx, "tok"); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected expired session deleted on read, len=%d", s.Len())
	}
	// moving the clock back must not revive it
	now = now.Add(-time.Hour)
	if _, err := s.Get(ctx, "tok"); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second read got %v", err)
	}
}

func TestSessionDeleteAndSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := memory.NewSessionStore(func() time.Time { return now })

	_ = s.Put(ctx, "live", model.Session{Address: "0x1", ExpiresAt: now.Add(time.Hour)})
	_ = s.Put(ctx, "dead", model.Session{Address: "0x2", ExpiresAt: now})
	_ = s.Put(ctx, "gone", model.Session{Address: "0x3", ExpiresAt: now.Add(time.Hour)})

	if err := s.Delete(ctx, "gone"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "gone"); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("expected deleted session to be missing got %v", err)
	}

	removed, err := s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected sweep to remove 1 got %d", removed)
	}
	if _, err := s.Get(ctx, "live"); err != nil {
		t.Fatalf("expected live session to survive got %v", err)
	}
}

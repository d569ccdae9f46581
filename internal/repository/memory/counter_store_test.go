package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"confidee-relayer/internal/repository/memory"
)

func TestIncrementIfBelowStopsAtLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := memory.NewCounterStore(4, func() time.Time { return now })
	expires := now.Add(time.Hour)

	for i := 1; i <= 3; i++ {
		allowed, count, err := s.IncrementIfBelow(ctx, "k", 3, expires)
		if err != nil || !allowed || count != i {
			t.Fatalf("call %d: expected (true, %d) got (%v, %d, %v)", i, i, allowed, count, err)
		}
	}
	allowed, count, _ := s.IncrementIfBelow(ctx, "k", 3, expires)
	if allowed || count != 3 {
		t.Fatalf("expected rejection at limit, got (%v, %d)", allowed, count)
	}
	if c, _ := s.Count(ctx, "k"); c != 3 {
		t.Fatalf("rejected call must not consume, count=%d", c)
	}
}

func TestStaleCounterCountsAsZero(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := memory.NewCounterStore(1, func() time.Time { return now })

	_, _, _ = s.IncrementIfBelow(ctx, "k", 1, now.Add(time.Minute))
	if allowed, _, _ := s.IncrementIfBelow(ctx, "k", 1, now.Add(time.Minute)); allowed {
		t.Fatal("expected limit reached")
	}

	now = now.Add(time.Minute)
	if c, _ := s.Count(ctx, "k"); c != 0 {
		t.Fatalf("expected stale counter to read zero got %d", c)
	}
	if allowed, count, _ := s.IncrementIfBelow(ctx, "k", 1, now.Add(time.Minute)); !allowed || count != 1 {
		t.Fatalf("expected fresh counter after staleness, got (%v, %d)", allowed, count)
	}
}

func TestReap(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := memory.NewCounterStore(8, func() time.Time { return now })

	_, _, _ = s.IncrementIfBelow(ctx, "a", 5, now.Add(time.Second))
	_, _, _ = s.IncrementIfBelow(ctx, "b", 5, now.Add(time.Hour))
	now = now.Add(2 * time.Second)

	if removed := s.Reap(); removed != 1 {
		t.Fatalf("expected 1 reaped got %d", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 counter left got %d", s.Len())
	}
}

func TestConcurrentIncrementNeverOvershoots(t *testing.T) {
	ctx := context.Background()
	s := memory.NewCounterStore(0, nil)
	expires := time.Now().Add(time.Hour)

	const limit = 10
	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _, _ := s.IncrementIfBelow(ctx, "0xabc:post:2026-03-01", limit, expires); ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	if granted.Load() != limit {
		t.Fatalf("expected exactly %d grants got %d", limit, granted.Load())
	}
}

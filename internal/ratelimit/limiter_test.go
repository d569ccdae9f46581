package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"confidee-relayer/internal/ratelimit"
	"confidee-relayer/internal/repository/memory"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newLimiter(start time.Time) (*ratelimit.Limiter, *clock) {
	c := &clock{now: start}
	store := memory.NewCounterStore(4, c.Now)
	return ratelimit.NewLimiter(store, c.Now, nil), c
}

func TestQuotaTable(t *testing.T) {
	tests := map[string]int{"post": 10, "like": 50, "unlike": 50, "comment": 25, "tip": ratelimit.DefaultQuota}
	for action, want := range tests {
		if got := ratelimit.Quota(action); got != want {
			t.Fatalf("%s: expected %d got %d", action, want, got)
		}
	}
	if ratelimit.Category("unlike") != "like" || ratelimit.Category("post") != "post" {
		t.Fatal("unexpected category mapping")
	}
}

func TestNthCheckAgainstQuota(t *testing.T) {
	ctx := context.Background()
	for _, action := range []string{"post", "like", "comment", "tip"} {
		l, _ := newLimiter(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
		quota := ratelimit.Quota(action)
		for n := 1; n <= quota+2; n++ {
			ok, err := l.Check(ctx, "0xabc", action)
			if err != nil {
				t.Fatal(err)
			}
			if want := n <= quota; ok != want {
				t.Fatalf("%s call %d: expected %v got %v", action, n, want, ok)
			}
		}
	}
}

func TestLikeAndUnlikeShareCounter(t *testing.T) {
	ctx := context.Background()
	l, _ := newLimiter(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	for i := 0; i < 30; i++ {
		if ok, _ := l.Check(ctx, "0xabc", "like"); !ok {
			t.Fatalf("like %d unexpectedly rejected", i)
		}
	}
	for i := 0; i < 20; i++ {
		if ok, _ := l.Check(ctx, "0xabc", "unlike"); !ok {
			t.Fatalf("unlike %d unexpectedly rejected", i)
		}
	}
	if ok, _ := l.Check(ctx, "0xabc", "unlike"); ok {
		t.Fatal("expected 51st like/unlike to be rejected")
	}
	if ok, _ := l.Check(ctx, "0xabc", "like"); ok {
		t.Fatal("expected like to share exhausted bucket")
	}
	if ok, _ := l.Check(ctx, "0xabc", "comment"); !ok {
		t.Fatal("comment quota must be independent")
	}
}

func TestAddressCaseIsNormalized(t *testing.T) {
	ctx := context.Background()
	l, _ := newLimiter(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	for i := 0; i < 10; i++ {
		_, _ = l.Check(ctx, "0xABC", "post")
	}
	if ok, _ := l.Check(ctx, "0xabc", "post"); ok {
		t.Fatal("expected mixed-case address to share counter")
	}
}

func TestInfoDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	l, _ := newLimiter(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	info, err := l.Info(ctx, "0xabc", "post")
	if err != nil {
		t.Fatal(err)
	}
	if info.Used != 0 || info.Limit != 10 || info.Remaining != 10 {
		t.Fatalf("expected fresh info, got %+v", info)
	}
	if want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC); !info.ResetAt.Equal(want) {
		t.Fatalf("expected reset at %v got %v", want, info.ResetAt)
	}

	for i := 0; i < 9; i++ {
		_, _ = l.Check(ctx, "0xabc", "post")
	}
	for i := 0; i < 100; i++ {
		_, _ = l.Info(ctx, "0xabc", "post")
	}
	info, _ = l.Info(ctx, "0xabc", "post")
	if info.Used != 9 || info.Remaining != 1 {
		t.Fatalf("expected 9 used, got %+v", info)
	}
	if ok, _ := l.Check(ctx, "0xabc", "post"); !ok {
		t.Fatal("expected 10th post to be allowed after info calls")
	}
	if ok, _ := l.Check(ctx, "0xabc", "post"); ok {
		t.Fatal("expected 11th post to be rejected")
	}
}

func TestResetAtUTCMidnight(t *testing.T) {
	ctx := context.Background()
	l, c := newLimiter(time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC))

	for i := 0; i < 10; i++ {
		_, _ = l.Check(ctx, "0xabc", "post")
	}
	if ok, _ := l.Check(ctx, "0xabc", "post"); ok {
		t.Fatal("expected quota exhausted at 23:59:59")
	}

	c.now = time.Date(2026, 3, 2, 0, 0, 1, 0, time.UTC)
	if ok, _ := l.Check(ctx, "0xabc", "post"); !ok {
		t.Fatal("expected fresh quota at 00:00:01 next day")
	}
}

func TestDayBoundaryUsesUTC(t *testing.T) {
	// 20:00 in UTC-5 is already the next UTC day
	loc := time.FixedZone("EST", -5*3600)
	local := time.Date(2026, 3, 1, 20, 0, 0, 0, loc)
	if got := ratelimit.Key("0xabc", "like", local); got != "0xabc:like:2026-03-02" {
		t.Fatalf("unexpected key %s", got)
	}
	if got := ratelimit.NextReset(local); !got.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected reset %v", got)
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	l, _ := newLimiter(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	_, _ = l.Check(ctx, "0xabc", "like")
	_, _ = l.Check(ctx, "0xabc", "comment")

	snap, err := l.Snapshot(ctx, "0xabc")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 4 {
		t.Fatalf("expected 4 entries got %d", len(snap))
	}
	if snap["like"].Used != 1 || snap["unlike"].Used != 1 {
		t.Fatalf("expected shared like/unlike usage, got %+v / %+v", snap["like"], snap["unlike"])
	}
	if snap["comment"].Remaining != 24 || snap["post"].Remaining != 10 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

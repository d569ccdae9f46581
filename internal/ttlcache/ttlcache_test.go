package ttlcache_test

import (
	"sync"
	"testing"
	"time"

	"confidee-relayer/internal/ttlcache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestSetGet(t *testing.T) {
	clock := newClock()
	s := ttlcache.NewMemory[string, int](ttlcache.WithClock(clock.Now))
	s.Set("a", 1, clock.Now().Add(time.Hour))

	v, ok := s.Get("a")
	if !ok || v != 1 {
		t.Fatalf("expected (1, true) got (%d, %v)", v, ok)
	}
}

func TestEmptyGet(t *testing.T) {
	s := ttlcache.NewMemory[string, int]()
	if _, ok := s.Get("missing"); ok {
		t.Fatal("expected missing key to be not found")
	}
}

func TestGetExpiredDeletes(t *testing.T) {
	clock := newClock()
	s := ttlcache.NewMemory[string, int](ttlcache.WithClock(clock.Now))
	s.Set("a", 1, clock.Now().Add(time.Minute))

	clock.Advance(time.Minute) // now == expiresAt is already expired
	if _, ok := s.Get("a"); ok {
		t.Fatal("expected entry at its expiry instant to be gone")
	}
	if s.Len() != 0 {
		t.Fatalf("expected read to delete entry, len=%d", s.Len())
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("expired entry must not come back")
	}
}

func TestSweep(t *testing.T) {
	clock := newClock()
	s := ttlcache.NewMemory[string, int](ttlcache.WithClock(clock.Now))
	s.Set("short", 1, clock.Now().Add(time.Second))
	s.Set("long", 2, clock.Now().Add(time.Hour))

	clock.Advance(2 * time.Second)
	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removed got %d", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 item left got %d", s.Len())
	}
	if _, ok := s.Get("long"); !ok {
		t.Fatal("expected long-lived entry to survive sweep")
	}
}

func TestSetIfAbsent(t *testing.T) {
	clock := newClock()
	s := ttlcache.NewMemory[string, struct{}](ttlcache.WithClock(clock.Now))

	if !s.SetIfAbsent("k", struct{}{}, clock.Now().Add(time.Minute)) {
		t.Fatal("expected first SetIfAbsent to succeed")
	}
	if s.SetIfAbsent("k", struct{}{}, clock.Now().Add(time.Minute)) {
		t.Fatal("expected second SetIfAbsent to fail")
	}
	clock.Advance(time.Minute)
	if !s.SetIfAbsent("k", struct{}{}, clock.Now().Add(time.Minute)) {
		t.Fatal("expected SetIfAbsent to succeed after expiry")
	}
}

func TestDelete(t *testing.T) {
	s := ttlcache.NewMemory[string, int]()
	s.Set("a", 1, time.Now().Add(time.Hour))
	s.Delete("a")
	s.Delete("never-there")
	if _, ok := s.Get("a"); ok {
		t.Fatal("expected deleted entry to be gone")
	}
}

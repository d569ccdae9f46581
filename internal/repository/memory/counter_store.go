package memory

import (
	"context"
	"sync"
	"time"

	"confidee-relayer/internal/bucketing"
)

const defaultShards = 32

type counter struct {
	count     int
	expiresAt time.Time
}

type shard struct {
	mu       sync.Mutex
	counters map[string]counter
}

// CounterStore is a sharded in-memory counter table. Each shard has its own
// mutex; the test-and-increment for a key happens entirely under its shard
// lock.
type CounterStore struct {
	shards  []*shard
	buckets *bucketing.BucketingManager
	now     func() time.Time
}

func NewCounterStore(shards int, now func() time.Time) *CounterStore {
	if shards <= 0 {
		shards = defaultShards
	}
	if now == nil {
		now = time.Now
	}
	s := &CounterStore{
		shards:  make([]*shard, shards),
		buckets: bucketing.NewBucketingManager(shards),
		now:     now,
	}
	for i := range s.shards {
		s.shards[i] = &shard{counters: make(map[string]counter)}
	}
	return s
}

func (s *CounterStore) IncrementIfBelow(_ context.Context, key string, limit int, expiresAt time.Time) (bool, int, error) {
	sh := s.shardFor(key)
	now := s.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		c = counter{expiresAt: expiresAt}
	}
	if c.count >= limit {
		return false, c.count, nil
	}
	c.count++
	sh.counters[key] = c
	return true, c.count, nil
}

func (s *CounterStore) Count(_ context.Context, key string) (int, error) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.counters[key]
	if !ok || !s.now().Before(c.expiresAt) {
		return 0, nil
	}
	return c.count, nil
}

// Reap drops stale counters and returns how many were removed.
func (s *CounterStore) Reap() int {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, c := range sh.counters {
			if !now.Before(c.expiresAt) {
				delete(sh.counters, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len is the number of counters held, stale or not.
func (s *CounterStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.counters)
		sh.mu.Unlock()
	}
	return n
}

func (s *CounterStore) shardFor(key string) *shard {
	return s.shards[s.buckets.Bucket(key)]
}

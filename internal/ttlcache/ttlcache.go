// Package ttlcache provides a keyed store whose entries carry an absolute
// expiry. Expired entries are removed when read, so correctness never depends
// on Sweep running; Sweep only reclaims memory for keys nobody reads again.
package ttlcache

import (
	"sync"
	"time"
)

// Store is a keyed store with per-entry absolute expiry.
type Store[K comparable, V any] interface {
	// Set stores v under k until expiresAt, overwriting any existing entry.
	Set(k K, v V, expiresAt time.Time)

	// Get returns the live value for k. An entry whose expiry has passed is
	// deleted and reported as missing.
	Get(k K) (V, bool)

	// SetIfAbsent stores v only when k has no live entry and reports whether
	// it did.
	SetIfAbsent(k K, v V, expiresAt time.Time) bool

	Delete(k K)

	// Sweep removes every entry with expiresAt <= now and returns how many
	// were removed.
	Sweep() int

	Len() int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]entry[V]
	now   func() time.Time
}

// Option configures a Memory store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewMemory creates an empty in-memory store.
func NewMemory[K comparable, V any](opts ...Option) *Memory[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Memory[K, V]{
		items: make(map[K]entry[V]),
		now:   o.now,
	}
}

func (m *Memory[K, V]) Set(k K, v V, expiresAt time.Time) {
	m.mu.Lock()
	m.items[k] = entry[V]{value: v, expiresAt: expiresAt}
	m.mu.Unlock()
}

func (m *Memory[K, V]) Get(k K) (V, bool) {
	var zero V

	m.mu.RLock()
	e, ok := m.items[k]
	m.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if m.live(e) {
		return e.value, true
	}

	m.mu.Lock()
	// re-check: the entry may have been replaced between the two locks
	if cur, ok := m.items[k]; ok && !m.live(cur) {
		delete(m.items, k)
	}
	m.mu.Unlock()
	return zero, false
}

func (m *Memory[K, V]) SetIfAbsent(k K, v V, expiresAt time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.items[k]; ok && m.live(e) {
		return false
	}
	m.items[k] = entry[V]{value: v, expiresAt: expiresAt}
	return true
}

func (m *Memory[K, V]) Delete(k K) {
	m.mu.Lock()
	delete(m.items, k)
	m.mu.Unlock()
}

func (m *Memory[K, V]) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, e := range m.items {
		if !m.live(e) {
			delete(m.items, k)
			removed++
		}
	}
	return removed
}

func (m *Memory[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory[K, V]) live(e entry[V]) bool {
	return m.now().Before(e.expiresAt)
}

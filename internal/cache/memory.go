package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache implements Cache using in-memory storage.
type MemoryCache[V any] struct {
	mu         sync.RWMutex
	items      map[string]Entry[V]
	maxEntries int
	seq        uint64
	now        func() time.Time
}

// Option configures a MemoryCache.
type Option func(*memoryConfig)

type memoryConfig struct {
	maxEntries int
	now        func() time.Time
}

// WithMaxEntries bounds the number of entries; zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *memoryConfig) { c.maxEntries = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *memoryConfig) { c.now = now }
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache[V any](opts ...Option) *MemoryCache[V] {
	cfg := memoryConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MemoryCache[V]{
		items:      make(map[string]Entry[V]),
		maxEntries: cfg.maxEntries,
		now:        cfg.now,
	}
}

// Get retrieves a value from the cache.
func (m *MemoryCache[V]) Get(_ context.Context, key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var zero V
	entry, ok := m.items[key]
	if !ok || entry.ExpiredAt(m.now()) {
		return zero, false
	}
	return entry.Value, true
}

// Set stores a value in the cache with the given TTL. A non-positive TTL
// stores the value without expiry. When the cache is full, expired entries
// are dropped first and then the oldest entry is evicted.
func (m *MemoryCache[V]) Set(_ context.Context, key string, value V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if _, exists := m.items[key]; !exists && m.maxEntries > 0 && len(m.items) >= m.maxEntries {
		m.cleanupLocked(now)
		if len(m.items) >= m.maxEntries {
			m.evictOldestLocked()
		}
	}

	m.seq++
	entry := Entry[V]{Value: value, seq: m.seq}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}
	m.items[key] = entry
}

// Delete removes a value from the cache.
func (m *MemoryCache[V]) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
}

// Clear removes all values from the cache.
func (m *MemoryCache[V]) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]Entry[V])
}

// Len returns the number of items in the cache (including expired).
func (m *MemoryCache[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.items)
}

// Cleanup removes expired entries.
func (m *MemoryCache[V]) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanupLocked(m.now())
}

func (m *MemoryCache[V]) cleanupLocked(now time.Time) {
	for key, entry := range m.items {
		if entry.ExpiredAt(now) {
			delete(m.items, key)
		}
	}
}

func (m *MemoryCache[V]) evictOldestLocked() {
	var (
		oldestKey string
		oldestSeq uint64
		found     bool
	)
	for key, entry := range m.items {
		if !found || entry.seq < oldestSeq {
			oldestKey, oldestSeq, found = key, entry.seq, true
		}
	}
	if found {
		delete(m.items, oldestKey)
	}
}

// Ensure MemoryCache implements Cache interface
var _ Cache[string] = (*MemoryCache[string])(nil)

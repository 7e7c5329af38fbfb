package storage

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count    int64
	expireAt time.Time
}

// MemoryStorage is an in-process backend. It is safe for concurrent use by
// multiple goroutines, but its state is local to the process and is not
// shared across replicas; use RedisStorage or PostgresStorage when a single
// global limit must hold across instances.
//
// A single mutex serializes all operations. The operations are short map
// lookups, so coarse locking is sufficient and keeps the compound
// check-and-mutate steps trivially atomic.
type MemoryStorage struct {
	mu       sync.Mutex
	counters map[string]counter
	windows  map[string][]time.Time
	now      func() time.Time
}

// MemoryOption configures a MemoryStorage.
type MemoryOption func(*MemoryStorage)

// WithClock overrides the time source. Intended for tests that need to move
// time forward deterministically instead of sleeping.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStorage) {
		m.now = now
	}
}

// NewMemoryStorage constructs a MemoryStorage with empty state.
func NewMemoryStorage(opts ...MemoryOption) *MemoryStorage {
	m := &MemoryStorage{
		counters: make(map[string]counter),
		windows:  make(map[string][]time.Time),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *MemoryStorage) Incr(_ context.Context, key string, expiry time.Duration, elastic bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	c, ok := m.counters[key]
	if !ok || !c.expireAt.After(now) {
		// Absent or expired: fresh window starting now.
		c = counter{count: 1, expireAt: now.Add(expiry)}
	} else {
		c.count++
		if elastic {
			c.expireAt = now.Add(expiry)
		}
	}

	m.counters[key] = c

	return c.count, nil
}

func (m *MemoryStorage) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[key]
	if !ok || !c.expireAt.After(m.now()) {
		return 0, nil
	}

	return c.count, nil
}

func (m *MemoryStorage) GetExpiry(_ context.Context, key string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	c, ok := m.counters[key]
	if !ok || !c.expireAt.After(now) {
		return now, nil
	}

	return c.expireAt, nil
}

// Check always reports true: memory cannot be down.
func (m *MemoryStorage) Check(context.Context) bool {
	return true
}

// Reset forgets everything and reports the number of distinct keys removed;
// a key holding both a counter and a window log counts once.
func (m *MemoryStorage) Reset(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared := int64(len(m.counters))
	for key := range m.windows {
		if _, ok := m.counters[key]; !ok {
			cleared++
		}
	}

	m.counters = make(map[string]counter)
	m.windows = make(map[string][]time.Time)

	return cleared, nil
}

func (m *MemoryStorage) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.counters, key)
	delete(m.windows, key)

	return nil
}

// AcquireEntry implements MovingWindowSupport. Entries are kept newest-first
// and capped at limit, so the entry at index limit-1, when inside the
// window, proves the window is full without scanning the whole log.
func (m *MemoryStorage) AcquireEntry(_ context.Context, key string, limit int64, expiry time.Duration) (bool, error) {
	if limit < 1 {
		// A window with no slots admits nothing.
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-expiry)

	entries := m.windows[key]
	if int64(len(entries)) >= limit && !entries[limit-1].Before(cutoff) {
		return false, nil
	}

	entries = append([]time.Time{now}, entries...)
	if int64(len(entries)) > limit {
		entries = entries[:limit]
	}

	m.windows[key] = entries

	return true, nil
}

// GetMovingWindow implements MovingWindowSupport.
func (m *MemoryStorage) GetMovingWindow(_ context.Context, key string, _ int64, expiry time.Duration) (time.Time, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-expiry)

	var (
		count  int64
		oldest time.Time
	)

	for _, ts := range m.windows[key] {
		if ts.Before(cutoff) {
			// Newest-first order: everything past this point is older.
			break
		}

		count++
		oldest = ts
	}

	if count == 0 {
		return now, 0, nil
	}

	return oldest, count, nil
}

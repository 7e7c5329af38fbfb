package strategy_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HK-Mattew/go-limits/pkg/limits"
	"github.com/HK-Mattew/go-limits/pkg/storage"
	"github.com/HK-Mattew/go-limits/pkg/strategy"
)

// fakeClock drives the memory backend deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func TestFixedWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := storage.NewMemoryStorage(storage.WithClock(clock.Now))
	limiter := strategy.NewFixedWindow(store)
	item := limits.PerSecond(10, 2)

	start := clock.Now()

	for i := 0; i < 10; i++ {
		admitted, err := limiter.Hit(ctx, item)
		require.NoError(t, err)
		assert.True(t, admitted, "hit %d should be admitted", i+1)
	}

	clock.Advance(time.Second)

	admitted, err := limiter.Hit(ctx, item)
	require.NoError(t, err)
	assert.False(t, admitted, "11th hit inside the window is rejected")

	stats, err := limiter.GetWindowStats(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Remaining)
	assert.Equal(t, start.Add(2*time.Second), stats.Reset, "window is aligned to the first hit")

	clock.Advance(time.Second)

	stats, err = limiter.GetWindowStats(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.Remaining, "full amount available after expiry")

	admitted, err = limiter.Hit(ctx, item)
	require.NoError(t, err)
	assert.True(t, admitted)
}

func TestFixedWindowTestIsReadOnly(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := storage.NewMemoryStorage(storage.WithClock(clock.Now))
	limiter := strategy.NewFixedWindow(store)
	item := limits.PerMinute(2)

	_, err := limiter.Hit(ctx, item)
	require.NoError(t, err)

	before, err := limiter.GetWindowStats(ctx, item)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ok, err := limiter.Test(ctx, item)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	after, err := limiter.GetWindowStats(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, before, after, "test must not consume the limit")
}

func TestFixedWindowTestReportsExhaustion(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	limiter := strategy.NewFixedWindow(store)
	item := limits.PerMinute(1)

	ok, err := limiter.Test(ctx, item)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = limiter.Hit(ctx, item)
	require.NoError(t, err)

	ok, err = limiter.Test(ctx, item)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFixedWindowIdentifiersAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	limiter := strategy.NewFixedWindow(store)
	item := limits.PerMinute(1)

	admitted, err := limiter.Hit(ctx, item, "user_1")
	require.NoError(t, err)
	assert.True(t, admitted)

	admitted, err = limiter.Hit(ctx, item, "user_1")
	require.NoError(t, err)
	assert.False(t, admitted, "user_1 exhausted their limit")

	admitted, err = limiter.Hit(ctx, item, "user_2")
	require.NoError(t, err)
	assert.True(t, admitted, "user_2 is tracked independently")
}

func TestFixedWindowClear(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	limiter := strategy.NewFixedWindow(store)
	item := limits.PerMinute(1)

	_, err := limiter.Hit(ctx, item, "user_1")
	require.NoError(t, err)

	require.NoError(t, limiter.Clear(ctx, item, "user_1"))
	require.NoError(t, limiter.Clear(ctx, item, "user_1"), "clear is idempotent")

	stats, err := limiter.GetWindowStats(ctx, item, "user_1")
	require.NoError(t, err)
	assert.Equal(t, item.Amount, stats.Remaining)

	admitted, err := limiter.Hit(ctx, item, "user_1")
	require.NoError(t, err)
	assert.True(t, admitted)
}

func TestFixedWindowElasticExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := storage.NewMemoryStorage(storage.WithClock(clock.Now))
	limiter := strategy.NewFixedWindowElasticExpiry(store)
	item := limits.PerSecond(10, 2)

	for i := 0; i < 10; i++ {
		admitted, err := limiter.Hit(ctx, item)
		require.NoError(t, err)
		assert.True(t, admitted)
	}

	// Every hit, even a rejected one, pushes the reset a full window out
	// from the moment of the call.
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)

		admitted, err := limiter.Hit(ctx, item)
		require.NoError(t, err)
		assert.False(t, admitted)

		stats, err := limiter.GetWindowStats(ctx, item)
		require.NoError(t, err)
		assert.Equal(t, clock.Now().Add(2*time.Second), stats.Reset)
	}

	// Only a full quiet window closes it.
	clock.Advance(2 * time.Second)

	for i := 0; i < 10; i++ {
		admitted, err := limiter.Hit(ctx, item)
		require.NoError(t, err)
		assert.True(t, admitted, "fresh window admits the full amount")
	}
}

func TestFixedWindowConcurrent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	limiter := strategy.NewFixedWindow(store)
	item := limits.PerMinute(10)

	const goroutines = 100

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			ok, err := limiter.Hit(ctx, item)
			assert.NoError(t, err)

			if ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 10, admitted, "exactly amount hits are admitted under contention")
}

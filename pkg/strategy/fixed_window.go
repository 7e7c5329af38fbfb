package strategy

import (
	"context"
	"time"

	"github.com/HK-Mattew/go-limits/pkg/limits"
	"github.com/HK-Mattew/go-limits/pkg/storage"
)

// FixedWindow counts hits in a window aligned to the first hit: the first
// hit on an empty key opens the window, and it closes exactly expiry later
// regardless of what happens in between. Windows are not aligned to calendar
// boundaries.
type FixedWindow struct {
	base
}

// NewFixedWindow constructs a fixed window limiter over any backend.
func NewFixedWindow(store storage.Storage, opts ...Option) *FixedWindow {
	return &FixedWindow{base: newBase(store, "fixed-window", opts...)}
}

func (f *FixedWindow) Hit(ctx context.Context, item limits.RateLimitItem, identifiers ...string) (bool, error) {
	return f.hit(ctx, item, false, identifiers)
}

func (f *FixedWindow) hit(ctx context.Context, item limits.RateLimitItem, elastic bool, identifiers []string) (bool, error) {
	start := time.Now()

	count, err := f.store.Incr(ctx, item.KeyFor(identifiers...), item.Expiry(), elastic)
	admitted := err == nil && count <= item.Amount
	f.recordHit(start, admitted, err)

	if err != nil {
		return false, err
	}

	return admitted, nil
}

func (f *FixedWindow) Test(ctx context.Context, item limits.RateLimitItem, identifiers ...string) (bool, error) {
	count, err := f.store.Get(ctx, item.KeyFor(identifiers...))
	if err != nil {
		return false, err
	}

	return count < item.Amount, nil
}

func (f *FixedWindow) GetWindowStats(ctx context.Context, item limits.RateLimitItem, identifiers ...string) (WindowStats, error) {
	key := item.KeyFor(identifiers...)

	count, err := f.store.Get(ctx, key)
	if err != nil {
		return WindowStats{}, err
	}

	reset, err := f.store.GetExpiry(ctx, key)
	if err != nil {
		return WindowStats{}, err
	}

	return WindowStats{Reset: reset, Remaining: max(0, item.Amount-count)}, nil
}

// FixedWindowElasticExpiry behaves like FixedWindow except that every hit,
// admitted or rejected, pushes the window's expiry out to a full expiry from
// that moment. A burst of rejected hits therefore keeps moving the reset
// forward; the window only closes once expiry elapses with no hits at all.
type FixedWindowElasticExpiry struct {
	*FixedWindow
}

// NewFixedWindowElasticExpiry constructs an elastic expiry limiter over any
// backend.
func NewFixedWindowElasticExpiry(store storage.Storage, opts ...Option) *FixedWindowElasticExpiry {
	fw := NewFixedWindow(store, opts...)
	fw.name = "fixed-window-elastic-expiry"

	return &FixedWindowElasticExpiry{FixedWindow: fw}
}

func (f *FixedWindowElasticExpiry) Hit(ctx context.Context, item limits.RateLimitItem, identifiers ...string) (bool, error) {
	return f.hit(ctx, item, true, identifiers)
}

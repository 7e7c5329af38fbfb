package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/HK-Mattew/go-limits/pkg/limits"
	"github.com/HK-Mattew/go-limits/pkg/storage"
)

// ErrMovingWindowNotSupported is returned by NewMovingWindow when the chosen
// backend does not implement storage.MovingWindowSupport.
var ErrMovingWindowNotSupported = errors.New("strategy: moving window is not supported by this storage backend")

// WindowStats reports the state of one limit window.
type WindowStats struct {
	// Reset is when the window closes and the full amount becomes available
	// again.
	Reset time.Time

	// Remaining is how many hits the window can still admit.
	Remaining int64
}

// Limiter is the strategy surface consumed by application code. Exceeding a
// limit is a normal false result, never an error; errors are reserved for
// backend failures, which propagate unchanged.
//
// Implementations are stateless: all contended state lives in the storage
// backend, so a single Limiter is safe to share across any number of
// concurrent goroutines.
type Limiter interface {
	// Hit consumes the limit. It reports whether the hit was admitted.
	Hit(ctx context.Context, item limits.RateLimitItem, identifiers ...string) (bool, error)

	// Test reports whether a hit would currently be admitted, without
	// consuming anything. It never changes what a subsequent Hit observes.
	Test(ctx context.Context, item limits.RateLimitItem, identifiers ...string) (bool, error)

	// GetWindowStats returns the reset time and remaining capacity of the
	// current window. Read-only, like Test.
	GetWindowStats(ctx context.Context, item limits.RateLimitItem, identifiers ...string) (WindowStats, error)

	// Clear forgets all hits recorded for the item and identifiers.
	// Clearing an untouched limit is a no-op.
	Clear(ctx context.Context, item limits.RateLimitItem, identifiers ...string) error
}

// Option configures a strategy.
type Option func(*base)

// WithRecorder injects a metrics backend. The default recorder does nothing.
func WithRecorder(recorder MetricsRecorder) Option {
	return func(b *base) {
		b.recorder = recorder
	}
}

// base carries what every strategy shares: the storage reference, the
// strategy name used as a metrics tag, and the recorder.
type base struct {
	store    storage.Storage
	name     string
	recorder MetricsRecorder
}

func newBase(store storage.Storage, name string, opts ...Option) base {
	b := base{
		store:    store,
		name:     name,
		recorder: &NoOpMetricsRecorder{},
	}

	for _, opt := range opts {
		opt(&b)
	}

	return b
}

func (b *base) Clear(ctx context.Context, item limits.RateLimitItem, identifiers ...string) error {
	return b.store.Clear(ctx, item.KeyFor(identifiers...))
}

// recordHit emits the per-call counter and latency observation, mirroring
// what callers typically export as admission dashboards.
func (b *base) recordHit(start time.Time, admitted bool, err error) {
	result := "admitted"
	switch {
	case err != nil:
		result = "error"
	case !admitted:
		result = "rejected"
	}

	tags := map[string]string{"strategy": b.name, "result": result}
	b.recorder.Add("ratelimit.hit", 1, tags)
	b.recorder.Observe("ratelimit.latency", time.Since(start).Seconds(), tags)
}

// New builds a strategy by name: "fixed-window",
// "fixed-window-elastic-expiry" or "moving-window". Unknown names and
// backends lacking a required capability both fail construction.
func New(name string, store storage.Storage, opts ...Option) (Limiter, error) {
	switch name {
	case "fixed-window":
		return NewFixedWindow(store, opts...), nil
	case "fixed-window-elastic-expiry":
		return NewFixedWindowElasticExpiry(store, opts...), nil
	case "moving-window":
		return NewMovingWindow(store, opts...)
	default:
		return nil, errors.New("strategy: unknown strategy " + name)
	}
}

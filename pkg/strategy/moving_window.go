package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/HK-Mattew/go-limits/pkg/limits"
	"github.com/HK-Mattew/go-limits/pkg/storage"
)

// MovingWindow is a sliding-log limiter: the backend retains up to amount
// most-recent hit timestamps per key, and a hit is admitted only when fewer
// than amount of them fall inside the trailing expiry window at the instant
// of the attempt. Admission and recording happen in one atomic backend
// operation; there is no separate test-then-set.
type MovingWindow struct {
	base
	windows storage.MovingWindowSupport
}

// NewMovingWindow constructs a moving window limiter. The backend must
// implement storage.MovingWindowSupport; anything else is rejected with
// ErrMovingWindowNotSupported.
func NewMovingWindow(store storage.Storage, opts ...Option) (*MovingWindow, error) {
	windows, ok := store.(storage.MovingWindowSupport)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrMovingWindowNotSupported, store)
	}

	return &MovingWindow{
		base:    newBase(store, "moving-window", opts...),
		windows: windows,
	}, nil
}

func (m *MovingWindow) Hit(ctx context.Context, item limits.RateLimitItem, identifiers ...string) (bool, error) {
	start := time.Now()

	admitted, err := m.windows.AcquireEntry(ctx, item.KeyFor(identifiers...), item.Amount, item.Expiry())
	m.recordHit(start, admitted, err)

	if err != nil {
		return false, err
	}

	return admitted, nil
}

func (m *MovingWindow) Test(ctx context.Context, item limits.RateLimitItem, identifiers ...string) (bool, error) {
	_, count, err := m.windows.GetMovingWindow(ctx, item.KeyFor(identifiers...), item.Amount, item.Expiry())
	if err != nil {
		return false, err
	}

	return count < item.Amount, nil
}

func (m *MovingWindow) GetWindowStats(ctx context.Context, item limits.RateLimitItem, identifiers ...string) (WindowStats, error) {
	windowStart, count, err := m.windows.GetMovingWindow(ctx, item.KeyFor(identifiers...), item.Amount, item.Expiry())
	if err != nil {
		return WindowStats{}, err
	}

	return WindowStats{
		Reset:     windowStart.Add(item.Expiry()),
		Remaining: item.Amount - count,
	}, nil
}

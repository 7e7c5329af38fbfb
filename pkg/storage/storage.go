// Package storage defines the contract rate limiting strategies depend on and
// provides the backends that implement it.
//
// The contract is deliberately small: a handful of keyed counter/timestamp
// operations. What makes a backend correct is not the operation set but the
// atomicity each operation guarantees. Incr is a compound
// check-and-increment, AcquireEntry a compound check-and-insert; both must be
// indivisible from the caller's point of view, because the strategies built
// on top of them are only race-free if two concurrent callers can never both
// observe the same pre-mutation state. Each backend achieves this with its
// own native primitive:
//
//   - MemoryStorage serializes everything behind a single mutex.
//   - RedisStorage pushes the compound logic into Lua scripts executed
//     atomically by the server in one round trip.
//   - PostgresStorage expresses it as single conditional upsert statements
//     evaluated entirely server-side.
//
// MovingWindowSupport is an optional capability: backends that can maintain a
// bounded log of hit timestamps declare it by implementing the interface, and
// strategies that need it assert for it at construction time.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownScheme is returned by NewFromURI for URI schemes with no
// registered backend factory.
var ErrUnknownScheme = errors.New("storage: unknown storage scheme")

// Storage is the minimal operation set every backend implements. All
// operations are keyed by the deterministic string key derived by
// limits.RateLimitItem.KeyFor.
type Storage interface {
	// Incr atomically increments the counter for key. A missing or expired
	// record is recreated with count 1 and a fresh expiry of now+expiry; an
	// unexpired record has its count incremented, and additionally its
	// expiry pushed out to now+expiry when elastic is true. The count after
	// the increment is returned.
	Incr(ctx context.Context, key string, expiry time.Duration, elastic bool) (int64, error)

	// Get returns the current count for an unexpired record, or 0. It never
	// mutates state.
	Get(ctx context.Context, key string) (int64, error)

	// GetExpiry returns the record's expiry timestamp, or the current time
	// when no unexpired record exists.
	GetExpiry(ctx context.Context, key string) (time.Time, error)

	// Check probes backend liveness. It never returns an error for a down
	// backend; failure is reported as false.
	Check(ctx context.Context) bool

	// Reset clears all limiter-owned state and returns the number of keys
	// removed.
	Reset(ctx context.Context) (int64, error)

	// Clear deletes the record for one key, in both its counter and
	// window-entries forms. Clearing an absent key is a no-op.
	Clear(ctx context.Context, key string) error
}

// MovingWindowSupport is the optional capability required by the moving
// window strategy. A backend either implements it fully or the strategy
// refuses the backend at construction.
type MovingWindowSupport interface {
	// AcquireEntry atomically admits a new timestamped entry for key,
	// provided fewer than limit entries currently fall inside the trailing
	// expiry window. On admission the entry is recorded, the record's
	// garbage-collection expiry refreshed to now+expiry, and the stored log
	// capped at limit entries (oldest dropped). On rejection the stored
	// state is left untouched. A limit below one admits nothing. Two
	// racing callers must never both be admitted for a single free slot.
	AcquireEntry(ctx context.Context, key string, limit int64, expiry time.Duration) (bool, error)

	// GetMovingWindow returns, without mutating anything, the number of
	// entries with timestamps inside the trailing expiry window and the
	// timestamp of the oldest such entry. With no in-window entries it
	// returns (now, 0).
	GetMovingWindow(ctx context.Context, key string, limit int64, expiry time.Duration) (time.Time, int64, error)
}

// Package strategy provides the rate limiting algorithms: fixed window,
// fixed window with elastic expiry, and moving window.
//
// The primary entry point is the Limiter interface:
//
//	admitted, err := limiter.Hit(ctx, item, "user_123")
//
// where item is a limits.RateLimitItem describing the limit ("10 per
// minute") and the trailing identifiers scope it to a particular caller.
//
// # Overview
//
// A strategy turns raw counter and timestamp operations into admission
// decisions. The strategies themselves are stateless; every piece of mutable
// state lives in a storage.Storage backend, which is also where all
// concurrent access is serialized. That split is what lets one logical limit
// be enforced consistently across many processes: point every process at the
// same backend and they share the same windows.
//
// # Strategies
//
//   - FixedWindow counts hits in a bucket opened by the first hit and closed
//     exactly one window length later. Cheap and predictable, but a burst
//     straddling the boundary can briefly see up to twice the amount.
//
//   - FixedWindowElasticExpiry is FixedWindow with a sliding close: every
//     hit, including rejected ones, pushes the window's expiry a full window
//     length into the future. Useful for lockout-style limits where activity
//     during the penalty should prolong it.
//
//   - MovingWindow keeps a log of the most recent hit timestamps and admits
//     a hit only when fewer than the amount fall inside the trailing window
//     at that instant. The most accurate of the three; needs a backend that
//     implements storage.MovingWindowSupport.
//
// # Choosing a backend
//
// Any backend works for the fixed window strategies. MovingWindow requires
// the moving window capability, and NewMovingWindow fails fast with
// ErrMovingWindowNotSupported when the backend lacks it; the in-memory,
// Redis and Postgres backends shipped with this module all provide it.
//
// # Concurrency
//
// Limiters may be shared freely across goroutines. There is exactly one
// implementation of each algorithm: the context-taking methods block the
// calling goroutine while the backend round trip is in flight, and callers
// that want a non-blocking shape run the same call on a goroutine of their
// own. Hit is always a single atomic backend operation, never a read
// followed by a write, so two racing callers cannot both take the last slot
// in a window.
//
// # Error policy
//
// Exceeding a limit is not an error: Hit and Test return false. Errors are
// backend failures (connectivity, serialization) and propagate to the caller
// unchanged; the strategies never retry and never fall back. Whether to fail
// open or fail closed on a backend outage is the caller's decision.
//
// # Metrics
//
// Strategies accept a MetricsRecorder via WithRecorder. Every Hit emits a
// "ratelimit.hit" count and a "ratelimit.latency" observation tagged with
// the strategy name and the result (admitted, rejected, error). The default
// recorder is a no-op; PrometheusRecorder adapts the stream to a
// prometheus.Registerer.
package strategy

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage is a backend over PostgreSQL. The compound
// check-and-mutate operations are expressed as single conditional upsert
// statements, so the check and the mutation are evaluated together
// server-side in one round trip; concurrent callers are serialized by the
// row lock the upsert takes, never by client-side read-then-write cycles.
//
// Rows are never expired by the server; an expired row is treated as absent
// on read and recycled in place on the next write. Reset removes everything,
// expired or not.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS rate_limit_counters (
	key        text PRIMARY KEY,
	count      bigint NOT NULL,
	expires_at timestamptz NOT NULL
);
CREATE TABLE IF NOT EXISTS rate_limit_windows (
	key        text PRIMARY KEY,
	entries    timestamptz[] NOT NULL,
	expires_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS rate_limit_counters_expires_at ON rate_limit_counters (expires_at);
CREATE INDEX IF NOT EXISTS rate_limit_windows_expires_at ON rate_limit_windows (expires_at);
`

// NewPostgresStorage verifies connectivity and creates the limiter tables if
// they do not exist yet.
func NewPostgresStorage(ctx context.Context, pool *pgxpool.Pool) (*PostgresStorage, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("storage: postgres ping failed: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("storage: postgres schema setup failed: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func (p *PostgresStorage) Incr(ctx context.Context, key string, expiry time.Duration, elastic bool) (int64, error) {
	// One upsert carries the whole check-and-increment: an expired row is
	// recycled to count 1 with a fresh window, a live one is incremented,
	// and the expiry conditionally refreshed. now() is the statement
	// timestamp, so every branch sees the same instant.
	query := `
		INSERT INTO rate_limit_counters AS c (key, count, expires_at)
		VALUES ($1, 1, now() + ($2 * interval '1 millisecond'))
		ON CONFLICT (key) DO UPDATE SET
			count = CASE
				WHEN c.expires_at <= now() THEN 1
				ELSE c.count + 1
			END,
			expires_at = CASE
				WHEN c.expires_at <= now() OR $3 THEN now() + ($2 * interval '1 millisecond')
				ELSE c.expires_at
			END
		RETURNING count
	`

	var count int64
	if err := p.pool.QueryRow(ctx, query, key, expiry.Milliseconds(), elastic).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (p *PostgresStorage) Get(ctx context.Context, key string) (int64, error) {
	query := `
		SELECT count FROM rate_limit_counters
		WHERE key = $1 AND expires_at > now()
	`

	var count int64

	err := p.pool.QueryRow(ctx, query, key).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}

		return 0, err
	}

	return count, nil
}

func (p *PostgresStorage) GetExpiry(ctx context.Context, key string) (time.Time, error) {
	query := `
		SELECT expires_at FROM rate_limit_counters
		WHERE key = $1 AND expires_at > now()
	`

	var expiresAt time.Time

	err := p.pool.QueryRow(ctx, query, key).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Now(), nil
		}

		return time.Time{}, err
	}

	return expiresAt, nil
}

// Check pings the pool, converting any failure into false.
func (p *PostgresStorage) Check(ctx context.Context) bool {
	return p.pool.Ping(ctx) == nil
}

// Reset empties both tables in a single statement and reports how many
// distinct keys were removed; a key present in both tables counts once.
func (p *PostgresStorage) Reset(ctx context.Context) (int64, error) {
	query := `
		WITH c AS (DELETE FROM rate_limit_counters RETURNING key),
		     w AS (DELETE FROM rate_limit_windows RETURNING key)
		SELECT count(*) FROM (SELECT key FROM c UNION SELECT key FROM w) keys
	`

	var cleared int64
	if err := p.pool.QueryRow(ctx, query).Scan(&cleared); err != nil {
		return 0, err
	}

	return cleared, nil
}

func (p *PostgresStorage) Clear(ctx context.Context, key string) error {
	query := `
		WITH c AS (DELETE FROM rate_limit_counters WHERE key = $1)
		DELETE FROM rate_limit_windows WHERE key = $1
	`

	_, err := p.pool.Exec(ctx, query, key)

	return err
}

// AcquireEntry implements MovingWindowSupport. The entries array is kept
// newest-first and capped at limit, so entries[limit] existing and falling
// inside the trailing window means the window is full; the DO UPDATE WHERE
// clause then suppresses the write and zero affected rows signals rejection.
func (p *PostgresStorage) AcquireEntry(ctx context.Context, key string, limit int64, expiry time.Duration) (bool, error) {
	if limit < 1 {
		return false, nil
	}

	query := `
		INSERT INTO rate_limit_windows AS w (key, entries, expires_at)
		VALUES ($1, ARRAY[now()], now() + ($3 * interval '1 millisecond'))
		ON CONFLICT (key) DO UPDATE SET
			entries = (ARRAY[now()] || w.entries)[1:$2::int],
			expires_at = now() + ($3 * interval '1 millisecond')
		WHERE w.entries[$2::int] IS NULL
			OR w.entries[$2::int] < now() - ($3 * interval '1 millisecond')
	`

	tag, err := p.pool.Exec(ctx, query, key, limit, expiry.Milliseconds())
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

// GetMovingWindow implements MovingWindowSupport with a read-only aggregate.
func (p *PostgresStorage) GetMovingWindow(ctx context.Context, key string, _ int64, expiry time.Duration) (time.Time, int64, error) {
	query := `
		SELECT min(e), count(*)
		FROM rate_limit_windows w
		CROSS JOIN LATERAL unnest(w.entries) AS e
		WHERE w.key = $1 AND e >= now() - ($2 * interval '1 millisecond')
	`

	var (
		oldest *time.Time
		count  int64
	)

	if err := p.pool.QueryRow(ctx, query, key, expiry.Milliseconds()).Scan(&oldest, &count); err != nil {
		return time.Time{}, 0, err
	}

	if count == 0 || oldest == nil {
		return time.Now(), 0, nil
	}

	return *oldest, count, nil
}

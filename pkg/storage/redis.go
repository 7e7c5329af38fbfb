package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed incr.lua
var incrScript string

//go:embed acquire_entry.lua
var acquireEntryScript string

//go:embed moving_window.lua
var movingWindowScript string

const defaultRedisPrefix = "limits:"

// RedisStorage is a backend for any Redis-compatible server. Every compound
// operation is a Lua script loaded once at construction and executed by SHA,
// so the check-and-mutate cycle is a single atomic round trip regardless of
// how many processes share the same server.
type RedisStorage struct {
	client          *redis.Client
	prefix          string
	timeout         time.Duration
	incrSHA         string
	acquireSHA      string
	movingWindowSHA string
}

// RedisOption configures a RedisStorage.
type RedisOption func(*RedisStorage)

// WithPrefix sets the key prefix (default "limits:"). The prefix scopes
// Reset, which deletes every key below it.
func WithPrefix(prefix string) RedisOption {
	return func(r *RedisStorage) {
		r.prefix = prefix
	}
}

// WithTimeout sets a per-operation deadline applied on top of the caller's
// context (default 5s).
func WithTimeout(timeout time.Duration) RedisOption {
	return func(r *RedisStorage) {
		r.timeout = timeout
	}
}

// NewRedisStorage verifies connectivity and loads the Lua scripts. A failed
// ping or script load fails construction; there is no lazy reconnect.
func NewRedisStorage(client *redis.Client, opts ...RedisOption) (*RedisStorage, error) {
	r := &RedisStorage{
		client:  client,
		prefix:  defaultRedisPrefix,
		timeout: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(r)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("storage: redis ping failed: %w", err)
	}

	for _, s := range []struct {
		src string
		sha *string
	}{
		{incrScript, &r.incrSHA},
		{acquireEntryScript, &r.acquireSHA},
		{movingWindowScript, &r.movingWindowSHA},
	} {
		sha, err := client.ScriptLoad(ctx, s.src).Result()
		if err != nil {
			return nil, fmt.Errorf("storage: redis script load failed: %w", err)
		}

		*s.sha = sha
	}

	return r, nil
}

func (r *RedisStorage) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *RedisStorage) Incr(ctx context.Context, key string, expiry time.Duration, elastic bool) (int64, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	elasticArg := "0"
	if elastic {
		elasticArg = "1"
	}

	count, err := r.client.EvalSha(ctx, r.incrSHA,
		[]string{r.prefix + key},
		expiry.Milliseconds(),
		elasticArg,
	).Int64()
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *RedisStorage) Get(ctx context.Context, key string) (int64, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	count, err := r.client.Get(ctx, r.prefix+key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}

		return 0, err
	}

	return count, nil
}

func (r *RedisStorage) GetExpiry(ctx context.Context, key string) (time.Time, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	ttl, err := r.client.PTTL(ctx, r.prefix+key).Result()
	if err != nil {
		return time.Time{}, err
	}

	now := time.Now()
	if ttl <= 0 {
		// -1 (no expiry) and -2 (no key) both mean no live window.
		return now, nil
	}

	return now.Add(ttl), nil
}

// Check pings the server, converting any failure into false.
func (r *RedisStorage) Check(ctx context.Context) bool {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	return r.client.Ping(ctx).Err() == nil
}

// Reset deletes every key below the configured prefix using SCAN, so it
// never blocks the server the way KEYS would on a large database.
func (r *RedisStorage) Reset(ctx context.Context) (int64, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	var cleared int64

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return cleared, err
		}

		cleared++
	}

	if err := iter.Err(); err != nil {
		return cleared, err
	}

	return cleared, nil
}

func (r *RedisStorage) Clear(ctx context.Context, key string) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	return r.client.Del(ctx, r.prefix+key).Err()
}

// AcquireEntry implements MovingWindowSupport via the acquire_entry script.
func (r *RedisStorage) AcquireEntry(ctx context.Context, key string, limit int64, expiry time.Duration) (bool, error) {
	if limit < 1 {
		return false, nil
	}

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	admitted, err := r.client.EvalSha(ctx, r.acquireSHA,
		[]string{r.prefix + key},
		time.Now().UnixMilli(),
		limit,
		expiry.Milliseconds(),
	).Int64()
	if err != nil {
		return false, err
	}

	return admitted == 1, nil
}

// GetMovingWindow implements MovingWindowSupport via the moving_window
// script, which is read-only.
func (r *RedisStorage) GetMovingWindow(ctx context.Context, key string, _ int64, expiry time.Duration) (time.Time, int64, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	now := time.Now()

	result, err := r.client.EvalSha(ctx, r.movingWindowSHA,
		[]string{r.prefix + key},
		now.UnixMilli(),
		expiry.Milliseconds(),
	).Result()
	if err != nil {
		return time.Time{}, 0, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return time.Time{}, 0, fmt.Errorf("storage: unexpected moving window reply %v", result)
	}

	oldest, ok := values[0].(int64)
	if !ok {
		return time.Time{}, 0, fmt.Errorf("storage: unexpected window start %v", values[0])
	}

	count, ok := values[1].(int64)
	if !ok {
		return time.Time{}, 0, fmt.Errorf("storage: unexpected window count %v", values[1])
	}

	if count == 0 {
		return now, 0, nil
	}

	return time.UnixMilli(oldest), count, nil
}

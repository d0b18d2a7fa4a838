// Package cache stores immutable JSON documents (test-instance views) in
// Redis. Callers treat every error as a miss.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
}

const keyPrefix = "examprep:"

type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to addr. A zero ttl keeps entries until evicted.
func NewRedis(addr string, ttl time.Duration) *Redis {
	return &Redis{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

func (r *Redis) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, val []byte) error {
	return r.rdb.Set(ctx, keyPrefix+key, val, r.ttl).Err()
}

func (r *Redis) Close() error { return r.rdb.Close() }

// Nop never hits.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error          { return nil }

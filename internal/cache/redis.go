package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores list views in Redis so every server instance sees the
// same invalidation. The version of a key lives under key + ":version".
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache parses a redis:// URL and pings the server.
func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisCacheFromClient(client), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func versionKey(key string) string {
	return key + ":version"
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisCache) Version(ctx context.Context, key string) (int64, error) {
	return readVersion(ctx, r.client, key)
}

// SetIfVersion watches the version key so an Invalidate that lands between
// the check and the write aborts the transaction.
func (r *RedisCache) SetIfVersion(ctx context.Context, key string, value []byte, ttl time.Duration, version int64) (bool, error) {
	stored := false
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, versionKey(key))
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored, nil
}

func (r *RedisCache) Invalidate(ctx context.Context, key string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.Incr(ctx, versionKey(key))
		return nil
	})
	return err
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func readVersion(ctx context.Context, c redis.Cmdable, key string) (int64, error) {
	v, err := c.Get(ctx, versionKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

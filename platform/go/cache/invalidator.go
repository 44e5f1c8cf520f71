package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Invalidator drops every cache entry registered under a tag. Implementations
// must be safe for concurrent use; callers treat failures as non-fatal.
type Invalidator interface {
	Invalidate(ctx context.Context, tag string) error
}

// Cache is a tagged key/value cache. Set records the key under the tag, so a
// later Invalidate(tag) drops the entry together with everything else written
// under the same tag.
type Cache interface {
	Invalidator
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, tag, key string, value []byte, ttl time.Duration) error
}

const tagKeyPrefix = "tag:"

// RedisInvalidator keys tagged entries through a Redis set per tag. The set
// holds the cache keys written under the tag; invalidation deletes the members
// and the set itself.
type RedisInvalidator struct {
	client *redis.Client
}

// NewRedisInvalidator wraps an existing Redis client.
func NewRedisInvalidator(client *redis.Client) *RedisInvalidator {
	if client == nil {
		panic("cache: redis client is required")
	}
	return &RedisInvalidator{client: client}
}

func (r *RedisInvalidator) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache key %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes the entry and adds its key to the tag set in one transaction, so
// an Invalidate racing with Set never leaves an untagged entry behind.
func (r *RedisInvalidator) Set(ctx context.Context, tag, key string, value []byte, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, value, ttl)
	pipe.SAdd(ctx, tagKeyPrefix+tag, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write cache key %q under tag %q: %w", key, tag, err)
	}
	return nil
}

func (r *RedisInvalidator) Invalidate(ctx context.Context, tag string) error {
	setKey := tagKeyPrefix + tag

	members, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("load cache tag %q: %w", tag, err)
	}

	del := append(members, setKey)
	if err := r.client.Del(ctx, del...).Err(); err != nil {
		return fmt.Errorf("invalidate cache tag %q: %w", tag, err)
	}
	return nil
}

// NopInvalidator satisfies Cache without a backing store: reads always miss,
// writes and invalidations succeed silently. Used when CACHE_URL is not
// configured.
type NopInvalidator struct{}

func (NopInvalidator) Invalidate(context.Context, string) error { return nil }

func (NopInvalidator) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NopInvalidator) Set(context.Context, string, string, []byte, time.Duration) error { return nil }

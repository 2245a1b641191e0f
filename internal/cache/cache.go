// Package cache memoizes the read-only academic query paths and is
// invalidated by the sync pipeline after a successful refresh.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the read-side cache interface. Implementations must be
// safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	InvalidateAll(ctx context.Context, studentID int64) error
}

// RedisCache implements Cache using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// InvalidateAll drops every memoized read entry for the student.
// Called after a successful refresh sync.
func (c *RedisCache) InvalidateAll(ctx context.Context, studentID int64) error {
	return c.client.Del(ctx, StudentKeys(studentID)...).Err()
}

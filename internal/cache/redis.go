package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces action keys in Redis.
const DefaultKeyPrefix = "walletscore:action:"

// RedisCache is an action cache shared across runs through Redis.
type RedisCache struct {
	Client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(opt *redis.Options, ttl time.Duration) *RedisCache {
	return &RedisCache{
		Client: redis.NewClient(opt),
		prefix: DefaultKeyPrefix,
		ttl:    ttl,
	}
}

// NewRedisCacheFromURL creates a cache from a redis:// URL.
func NewRedisCacheFromURL(rawURL string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisCache(opt, ttl), nil
}

// Ping verifies the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Get returns the cached action for txHash.
func (c *RedisCache) Get(ctx context.Context, txHash string) (string, bool, error) {
	v, err := c.Client.Get(ctx, c.prefix+txHash).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores the action for txHash.
func (c *RedisCache) Set(ctx context.Context, txHash, action string) error {
	return c.Client.Set(ctx, c.prefix+txHash, action, c.ttl).Err()
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.Client.Close()
}

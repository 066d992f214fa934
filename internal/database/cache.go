package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	// Cache key prefixes
	CacheKeyScan   = "repoviral:scan:"
	CacheKeyReadme = "repoviral:readme:"

	// Cache TTLs
	CacheTTLScan   = 10 * time.Minute
	CacheTTLReadme = 10 * time.Minute
)

// ErrCacheUnavailable is returned when no Redis client is connected.
// Callers treat it like a miss.
var ErrCacheUnavailable = errors.New("cache not available")

// RedisCache adapts the package-level helpers to an injectable value for
// components that want to swap the cache out in tests.
type RedisCache struct{}

func (RedisCache) Get(key string, dest interface{}) error {
	return CacheGet(key, dest)
}

func (RedisCache) Set(key string, value interface{}, ttl time.Duration) error {
	return CacheSet(key, value, ttl)
}

// CacheGet retrieves a value from Redis cache and unmarshals it into dest
func CacheGet(key string, dest interface{}) error {
	if Redis == nil {
		return ErrCacheUnavailable
	}
	ctx := context.Background()
	data, err := Redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// CacheSet stores a value in Redis cache with TTL
func CacheSet(key string, value interface{}, ttl time.Duration) error {
	if Redis == nil {
		return ErrCacheUnavailable
	}
	ctx := context.Background()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return Redis.Set(ctx, key, data, ttl).Err()
}

// CacheDelete removes a key from Redis cache
func CacheDelete(keys ...string) error {
	if Redis == nil || len(keys) == 0 {
		return nil
	}
	ctx := context.Background()
	return Redis.Del(ctx, keys...).Err()
}

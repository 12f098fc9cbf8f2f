// Package xcache provides typed caches on top of gocache, configurable as
// in-memory, redis, or a two-level memory+redis chain.
package xcache

import (
	"context"
	"fmt"
	"time"

	cachelib "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
	redis "github.com/redis/go-redis/v9"

	"github.com/arbiterhq/arbiter/internal/log"
	redis_store "github.com/arbiterhq/arbiter/internal/pkg/xcache/redis"
	"github.com/arbiterhq/arbiter/internal/pkg/xredis"
)

// Cache is an alias to the gocache CacheInterface for convenience. It exposes
// Get/Set/Delete/Invalidate/Clear/GetType; see github.com/eko/gocache/lib/v4/cache.
type Cache[T any] = cachelib.CacheInterface[T]

type SetterCache[T any] = cachelib.SetterCacheInterface[T]

// NewMemory creates a pure in-memory cache using patrickmn/go-cache as the backend.
func NewMemory[T any](client *gocache.Cache, options ...Option) SetterCache[T] {
	store := gocache_store.NewGoCache(client, options...)
	return cachelib.New[T](store)
}

// NewMemoryWithOptions builds the go-cache client for you using the provided
// default expiration and cleanup interval.
func NewMemoryWithOptions[T any](defaultExpiration, cleanupInterval time.Duration, options ...Option) SetterCache[T] {
	client := gocache.New(defaultExpiration, cleanupInterval)
	return NewMemory[T](client, options...)
}

// NewRedis creates a pure Redis cache on an existing go-redis client.
func NewRedis[T any](client *redis.Client, options ...Option) SetterCache[T] {
	store := redis_store.NewRedisStore[T](client, options...)
	return cachelib.New[T](store)
}

// NewFromConfig builds a typed cache from the given Config.
// Modes:
//   - memory: in-memory only
//   - redis: redis only
//   - two-level: memory + redis chain
//
// If mode is not set or invalid, returns a noop cache that does nothing.
func NewFromConfig[T any](cfg Config) (Cache[T], error) {
	if cfg.Mode == "" {
		return NewNoop[T](), nil
	}

	memExpiration := defaultIfZero(cfg.Memory.Expiration, 5*time.Minute)
	memCleanupInterval := defaultIfZero(cfg.Memory.CleanupInterval, 10*time.Minute)

	memClient := gocache.New(memExpiration, memCleanupInterval)
	memStore := gocache_store.NewGoCache(memClient, store.WithExpiration(memExpiration))
	mem := cachelib.New[T](memStore)

	var rds SetterCache[T]

	if (cfg.Redis.Addr != "" || cfg.Redis.URL != "") && cfg.Mode != ModeMemory {
		client, err := xredis.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("invalid redis config: %w", err)
		}

		redisExpiration := defaultIfZero(cfg.Redis.Expiration, 30*time.Minute)
		rdsStore := redis_store.NewRedisStore[T](client, store.WithExpiration(redisExpiration))
		rds = cachelib.New[T](rdsStore)
	}

	switch cfg.Mode {
	case ModeTwoLevel:
		if rds != nil {
			log.Info(context.Background(), "Using two-level cache")
			return cachelib.NewChain[T](mem, rds), nil
		}

		return mem, nil
	case ModeRedis:
		if rds == nil {
			return nil, fmt.Errorf("redis cache config is invalid")
		}

		log.Info(context.Background(), "Using redis cache")

		return rds, nil
	case ModeMemory:
		log.Info(context.Background(), "Using memory cache")
		return mem, nil
	default:
		log.Info(context.Background(), "Disable cache")
		return NewNoop[T](), nil
	}
}

func defaultIfZero(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}

	return d
}

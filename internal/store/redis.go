package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/arbiterhq/arbiter/internal/objects"
	"github.com/arbiterhq/arbiter/internal/pkg/xredis"
)

const defaultKeyPrefix = "arbiter"

// RedisStore reads attribute documents from redis. Attribute documents are
// JSON objects written by the external administrative plane; the engine only
// reads them.
//
// Key layout:
//
//	{prefix}:tenant:{tenant}:user:{key}
//	{prefix}:tenant:{tenant}:resource:{type}:{key}
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore builds a store on an existing client.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreFromConfig connects a client from the config.
func NewRedisStoreFromConfig(cfg Config) (*RedisStore, error) {
	client, err := xredis.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("store redis: %w", err)
	}

	return NewRedisStore(client, cfg.KeyPrefix), nil
}

func (s *RedisStore) Principal(ctx context.Context, tenant, key string) (objects.Attributes, bool, error) {
	return s.get(ctx, fmt.Sprintf("%s:tenant:%s:user:%s", s.prefix, tenant, key))
}

func (s *RedisStore) Resource(ctx context.Context, tenant, resourceType, key string) (objects.Attributes, bool, error) {
	base, baseFound, err := s.get(ctx, fmt.Sprintf("%s:tenant:%s:resource:%s:%s", s.prefix, tenant, resourceType, typeLevelKey))
	if err != nil {
		return nil, false, err
	}

	if key == "" {
		return base, baseFound, nil
	}

	attrs, found, err := s.get(ctx, fmt.Sprintf("%s:tenant:%s:resource:%s:%s", s.prefix, tenant, resourceType, key))
	if err != nil {
		return nil, false, err
	}

	if !found {
		return base, baseFound, nil
	}

	if baseFound {
		return base.Merge(attrs), true, nil
	}

	return attrs, true, nil
}

func (s *RedisStore) get(ctx context.Context, key string) (objects.Attributes, bool, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	var attrs objects.Attributes
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil, false, fmt.Errorf("decode attribute document %s: %w", key, err)
	}

	return attrs, true, nil
}

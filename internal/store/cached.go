package store

import (
	"context"
	"fmt"

	"github.com/arbiterhq/arbiter/internal/objects"
	"github.com/arbiterhq/arbiter/internal/pkg/xcache"
)

// cachedEntry keeps the found flag alongside the attributes, so negative
// lookups are cached too and a cold miss can be told apart from an unknown
// principal.
type cachedEntry struct {
	Attrs objects.Attributes `json:"attrs"`
	Found bool               `json:"found"`
}

// CachedStore layers an xcache over a backend store. Cache failures degrade
// to backend reads; they never fail a check.
type CachedStore struct {
	backend AttributeStore
	cache   xcache.Cache[cachedEntry]
}

// NewCachedStore wraps the backend with a cache built from the config.
func NewCachedStore(backend AttributeStore, cfg xcache.Config) (*CachedStore, error) {
	cache, err := xcache.NewFromConfig[cachedEntry](cfg)
	if err != nil {
		return nil, err
	}

	return &CachedStore{backend: backend, cache: cache}, nil
}

// Reload refreshes the backend snapshot when the backend supports it and
// drops every cached entry, so reads after a reload observe the new snapshot
// instead of stale (or stale-negative) cache hits.
func (s *CachedStore) Reload() error {
	if r, ok := s.backend.(interface{ Reload() error }); ok {
		if err := r.Reload(); err != nil {
			return err
		}
	}

	return s.cache.Clear(context.Background())
}

func (s *CachedStore) Principal(ctx context.Context, tenant, key string) (objects.Attributes, bool, error) {
	cacheKey := fmt.Sprintf("p:%s:%s", tenant, key)

	return s.lookup(ctx, cacheKey, func() (objects.Attributes, bool, error) {
		return s.backend.Principal(ctx, tenant, key)
	})
}

func (s *CachedStore) Resource(ctx context.Context, tenant, resourceType, key string) (objects.Attributes, bool, error) {
	cacheKey := fmt.Sprintf("r:%s:%s:%s", tenant, resourceType, key)

	return s.lookup(ctx, cacheKey, func() (objects.Attributes, bool, error) {
		return s.backend.Resource(ctx, tenant, resourceType, key)
	})
}

func (s *CachedStore) lookup(ctx context.Context, cacheKey string, load func() (objects.Attributes, bool, error)) (objects.Attributes, bool, error) {
	if entry, err := s.cache.Get(ctx, cacheKey); err == nil {
		return entry.Attrs, entry.Found, nil
	}

	attrs, found, err := load()
	if err != nil {
		return nil, false, err
	}

	_ = s.cache.Set(ctx, cacheKey, cachedEntry{Attrs: attrs, Found: found})

	return attrs, found, nil
}

// Package store provides the attribute store the evaluator reads from. The
// store is externally owned: the engine only reads attribute snapshots at
// check time and never mutates them.
package store

import (
	"context"
	"fmt"

	"github.com/arbiterhq/arbiter/internal/objects"
	"github.com/arbiterhq/arbiter/internal/pkg/xcache"
	"github.com/arbiterhq/arbiter/internal/pkg/xredis"
)

// AttributeStore is the narrow query interface evaluation reads through.
// Implementations must be safe for concurrent reads; checks never write.
type AttributeStore interface {
	// Principal returns the stored attributes for a principal within a tenant.
	// found reports whether the principal is known to the tenant at all, which
	// drives implicit tenant-membership grants.
	Principal(ctx context.Context, tenant, key string) (attrs objects.Attributes, found bool, err error)

	// Resource returns the stored attributes for a resource instance within a
	// tenant. A lookup without an instance key returns the type-level
	// attributes when present.
	Resource(ctx context.Context, tenant, resourceType, key string) (attrs objects.Attributes, found bool, err error)
}

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config selects and configures the store backend.
type Config struct {
	// Backend is memory or redis. Defaults to memory.
	Backend string `conf:"backend" yaml:"backend" json:"backend"`

	// FixturePath is the YAML attribute snapshot for the memory backend.
	FixturePath string `conf:"fixture_path" yaml:"fixture_path" json:"fixture_path"`

	// KeyPrefix namespaces redis keys. Defaults to arbiter.
	KeyPrefix string `conf:"key_prefix" yaml:"key_prefix" json:"key_prefix"`

	Redis xredis.Config `conf:"redis" yaml:"redis" json:"redis"`

	// Cache configures the snapshot cache in front of the backend.
	Cache xcache.Config `conf:"cache" yaml:"cache" json:"cache"`
}

// NewFromConfig builds the configured attribute store, wrapped in a cache
// when one is configured.
func NewFromConfig(cfg Config) (AttributeStore, error) {
	var (
		backend AttributeStore
		err     error
	)

	switch cfg.Backend {
	case BackendRedis:
		backend, err = NewRedisStoreFromConfig(cfg)
	case BackendMemory, "":
		backend, err = NewMemoryStoreFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	if err != nil {
		return nil, err
	}

	if cfg.Cache.Mode == "" {
		return backend, nil
	}

	return NewCachedStore(backend, cfg.Cache)
}

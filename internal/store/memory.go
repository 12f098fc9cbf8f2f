package store

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/arbiterhq/arbiter/internal/objects"
)

// typeLevelKey holds attributes that apply to a resource type rather than a
// single instance.
const typeLevelKey = "*"

// Snapshot is a point-in-time attribute view for all tenants, as parsed from
// the fixture file.
type Snapshot struct {
	Tenants map[string]TenantSnapshot `yaml:"tenants"`
}

// TenantSnapshot holds one tenant's principals and resources.
type TenantSnapshot struct {
	Users     map[string]objects.Attributes            `yaml:"users"`
	Resources map[string]map[string]objects.Attributes `yaml:"resources"`
}

// MemoryStore serves attribute reads from an in-memory snapshot. Reloads swap
// the snapshot atomically, so concurrent checks always observe a consistent
// view.
type MemoryStore struct {
	snapshot atomic.Pointer[Snapshot]
	path     string
}

// NewMemoryStore builds a store around the given snapshot.
func NewMemoryStore(snapshot Snapshot) *MemoryStore {
	s := &MemoryStore{}
	s.snapshot.Store(&snapshot)

	return s
}

// NewMemoryStoreFromConfig loads the fixture file named by the config. An
// empty fixture path yields an empty snapshot.
func NewMemoryStoreFromConfig(cfg Config) (*MemoryStore, error) {
	s := NewMemoryStore(Snapshot{})
	s.path = cfg.FixturePath

	if cfg.FixturePath != "" {
		if err := s.Reload(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Reload re-reads the fixture file and swaps the snapshot.
func (s *MemoryStore) Reload() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read attribute fixture: %w", err)
	}

	var snapshot Snapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("parse attribute fixture: %w", err)
	}

	s.snapshot.Store(&snapshot)

	return nil
}

func (s *MemoryStore) Principal(ctx context.Context, tenant, key string) (objects.Attributes, bool, error) {
	snapshot := s.snapshot.Load()

	ts, ok := snapshot.Tenants[tenant]
	if !ok {
		return nil, false, nil
	}

	attrs, ok := ts.Users[key]
	if !ok {
		return nil, false, nil
	}

	return attrs.Clone(), true, nil
}

func (s *MemoryStore) Resource(ctx context.Context, tenant, resourceType, key string) (objects.Attributes, bool, error) {
	snapshot := s.snapshot.Load()

	ts, ok := snapshot.Tenants[tenant]
	if !ok {
		return nil, false, nil
	}

	instances, ok := ts.Resources[resourceType]
	if !ok {
		return nil, false, nil
	}

	// Type-level attributes apply to every instance; instance attributes
	// overlay them.
	base := instances[typeLevelKey]

	if key == "" {
		if base == nil {
			return nil, false, nil
		}

		return base.Clone(), true, nil
	}

	attrs, ok := instances[key]
	if !ok {
		if base == nil {
			return nil, false, nil
		}

		return base.Clone(), true, nil
	}

	return base.Merge(attrs), true, nil
}

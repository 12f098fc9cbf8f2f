package store

import (
	"context"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/internal/objects"
	"github.com/arbiterhq/arbiter/internal/pkg/xcache"
)

// countingStore counts backend reads so cache hits are observable.
type countingStore struct {
	inner AttributeStore
	reads atomic.Int64
}

func (s *countingStore) Principal(ctx context.Context, tenant, key string) (objects.Attributes, bool, error) {
	s.reads.Add(1)
	return s.inner.Principal(ctx, tenant, key)
}

func (s *countingStore) Resource(ctx context.Context, tenant, resourceType, key string) (objects.Attributes, bool, error) {
	s.reads.Add(1)
	return s.inner.Resource(ctx, tenant, resourceType, key)
}

func setupCachedStore(t *testing.T) (*CachedStore, *countingStore) {
	t.Helper()

	backend := &countingStore{
		inner: NewMemoryStore(Snapshot{
			Tenants: map[string]TenantSnapshot{
				"acme": {
					Users: map[string]objects.Attributes{
						"john@doe.com": {"department": "engineering"},
					},
				},
			},
		}),
	}

	cached, err := NewCachedStore(backend, xcache.Config{Mode: xcache.ModeMemory})
	require.NoError(t, err)

	return cached, backend
}

func TestCachedStore_Principal(t *testing.T) {
	cached, backend := setupCachedStore(t)
	ctx := context.Background()

	attrs, found, err := cached.Principal(ctx, "acme", "john@doe.com")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "engineering", attrs["department"])
	require.EqualValues(t, 1, backend.reads.Load())

	// Second read is served from the cache.
	attrs, found, err = cached.Principal(ctx, "acme", "john@doe.com")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "engineering", attrs["department"])
	require.EqualValues(t, 1, backend.reads.Load())
}

func TestCachedStore_NegativeLookup(t *testing.T) {
	cached, backend := setupCachedStore(t)
	ctx := context.Background()

	for range 3 {
		_, found, err := cached.Principal(ctx, "acme", "ghost@doe.com")
		require.NoError(t, err)
		require.False(t, found)
	}

	// The not-found answer is cached like any other.
	require.EqualValues(t, 1, backend.reads.Load())
}

func TestCachedStore_Reload(t *testing.T) {
	path := writeFixture(t, `
tenants:
  acme:
    users:
      john@doe.com:
        department: engineering
`)

	backend, err := NewMemoryStoreFromConfig(Config{FixturePath: path})
	require.NoError(t, err)

	cached, err := NewCachedStore(backend, xcache.Config{Mode: xcache.ModeMemory})
	require.NoError(t, err)

	ctx := context.Background()

	// Prime the cache, including a negative entry for jane.
	attrs, found, err := cached.Principal(ctx, "acme", "john@doe.com")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "engineering", attrs["department"])

	_, found, err = cached.Principal(ctx, "acme", "jane@doe.com")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, os.WriteFile(path, []byte(`
tenants:
  acme:
    users:
      john@doe.com:
        department: sales
      jane@doe.com:
        department: support
`), 0o600))

	require.NoError(t, cached.Reload())

	// Both the positive and the negative entries reflect the new snapshot.
	attrs, found, err = cached.Principal(ctx, "acme", "john@doe.com")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "sales", attrs["department"])

	attrs, found, err = cached.Principal(ctx, "acme", "jane@doe.com")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "support", attrs["department"])
}

func TestCachedStore_KeysAreScoped(t *testing.T) {
	cached, backend := setupCachedStore(t)
	ctx := context.Background()

	_, found, err := cached.Principal(ctx, "acme", "john@doe.com")
	require.NoError(t, err)
	require.True(t, found)

	// Same key in another tenant is a distinct cache entry.
	_, found, err = cached.Principal(ctx, "beta", "john@doe.com")
	require.NoError(t, err)
	require.False(t, found)

	require.EqualValues(t, 2, backend.reads.Load())
}

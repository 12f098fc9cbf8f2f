package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/internal/objects"
	"github.com/arbiterhq/arbiter/internal/pdp"
	"github.com/arbiterhq/arbiter/internal/store"
)

const dispatcherPolicy = `
resources:
  - type: document
    roles:
      member: [read]
      admin: [read, create, delete]
`

// slowStore delays lookups for one tenant until the caller's context expires.
// Every other tenant resolves against the wrapped store immediately.
type slowStore struct {
	inner      store.AttributeStore
	slowTenant string
}

func (s *slowStore) Principal(ctx context.Context, tenant, key string) (objects.Attributes, bool, error) {
	if tenant == s.slowTenant {
		s.stall(ctx)
		return nil, false, ctx.Err()
	}

	return s.inner.Principal(ctx, tenant, key)
}

func (s *slowStore) Resource(ctx context.Context, tenant, resourceType, key string) (objects.Attributes, bool, error) {
	if tenant == s.slowTenant {
		s.stall(ctx)
		return nil, false, ctx.Err()
	}

	return s.inner.Resource(ctx, tenant, resourceType, key)
}

// stall holds the lookup until well past cancellation, so the partition
// deadline always fires before any outcome for the slow tenant is produced.
func (s *slowStore) stall(ctx context.Context) {
	<-ctx.Done()
	time.Sleep(100 * time.Millisecond)
}

func dispatcherSnapshot() store.Snapshot {
	users := map[string]objects.Attributes{
		"john@doe.com": {},
		"jane@doe.com": {},
		"root@ops.io":  {"roles": []any{"admin"}},
	}

	return store.Snapshot{
		Tenants: map[string]store.TenantSnapshot{
			"acme": {Users: users},
			"beta": {Users: users},
			"slow": {Users: users},
		},
	}
}

func setupDispatcher(t *testing.T, attrStore store.AttributeStore, config Config) *Dispatcher {
	t.Helper()

	policy, err := pdp.ParsePolicy([]byte(dispatcherPolicy))
	require.NoError(t, err)

	evaluator, err := pdp.NewEvaluator(policy, attrStore, pdp.NewRuleRegistry())
	require.NoError(t, err)

	dispatcher, err := New(evaluator, config)
	require.NoError(t, err)

	return dispatcher
}

func request(principal, action, tenant string) objects.CheckRequest {
	return objects.CheckRequest{
		Principal: objects.Principal{Key: principal},
		Action:    action,
		Resource:  objects.Resource{Type: "document", Tenant: tenant},
	}
}

func TestDispatcher_BulkCheck(t *testing.T) {
	dispatcher := setupDispatcher(t, store.NewMemoryStore(dispatcherSnapshot()), Config{Shards: 4})
	ctx := context.Background()

	t.Run("results align with requests", func(t *testing.T) {
		checks := []objects.CheckRequest{
			request("john@doe.com", "read", "acme"),
			request("jane@doe.com", "create", "acme"),
			request("root@ops.io", "create", "beta"),
			request("nobody@else.net", "read", "beta"),
		}

		results := dispatcher.BulkCheck(ctx, checks, false)
		require.Len(t, results, len(checks))

		require.True(t, results[0].Allowed)
		require.False(t, results[1].Allowed)
		require.True(t, results[2].Allowed)
		require.False(t, results[3].Allowed)

		for i, result := range results {
			require.Nil(t, result.Error, "entry %d", i)
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		require.Empty(t, dispatcher.BulkCheck(ctx, nil, false))
		require.Empty(t, dispatcher.BulkCheck(ctx, []objects.CheckRequest{}, false))
	})

	t.Run("single tenant batch", func(t *testing.T) {
		checks := make([]objects.CheckRequest, 50)
		for i := range checks {
			checks[i] = request("john@doe.com", "read", "acme")
		}

		results := dispatcher.BulkCheck(ctx, checks, false)
		require.Len(t, results, len(checks))

		for i, result := range results {
			require.Nil(t, result.Error, "entry %d", i)
			require.True(t, result.Allowed, "entry %d", i)
			require.Equal(t, "acme", result.Tenant, "entry %d", i)
		}
	})
}

func TestDispatcher_BulkCheck_RoutingErrors(t *testing.T) {
	dispatcher := setupDispatcher(t, store.NewMemoryStore(dispatcherSnapshot()), Config{Shards: 2})

	checks := []objects.CheckRequest{
		request("john@doe.com", "read", "acme"),
		request("john@doe.com", "read", ""), // no tenant, no default
		request("jane@doe.com", "read", "acme"),
	}

	results := dispatcher.BulkCheck(context.Background(), checks, false)
	require.Len(t, results, 3)

	require.Nil(t, results[0].Error)
	require.True(t, results[0].Allowed)

	require.NotNil(t, results[1].Error)
	require.Equal(t, objects.CheckErrorRouting, results[1].Error.Code)
	require.False(t, results[1].Allowed)

	require.Nil(t, results[2].Error)
	require.True(t, results[2].Allowed)
}

func TestDispatcher_BulkCheck_DefaultTenant(t *testing.T) {
	dispatcher := setupDispatcher(t, store.NewMemoryStore(dispatcherSnapshot()), Config{
		Shards:        2,
		DefaultTenant: "acme",
	})

	results := dispatcher.BulkCheck(context.Background(), []objects.CheckRequest{
		request("john@doe.com", "read", ""),
	}, false)

	require.Len(t, results, 1)
	require.Nil(t, results[0].Error)
	require.True(t, results[0].Allowed)
	require.Equal(t, "acme", results[0].Tenant)
}

func TestDispatcher_BulkCheck_TimeoutIsolation(t *testing.T) {
	attrStore := &slowStore{
		inner:      store.NewMemoryStore(dispatcherSnapshot()),
		slowTenant: "slow",
	}

	dispatcher := setupDispatcher(t, attrStore, Config{
		Shards:       2,
		QueryTimeout: 50 * time.Millisecond,
	})

	checks := []objects.CheckRequest{
		request("john@doe.com", "read", "slow"),
		request("john@doe.com", "read", "acme"),
		request("jane@doe.com", "read", "slow"),
		request("jane@doe.com", "create", "acme"),
	}

	start := time.Now()
	results := dispatcher.BulkCheck(context.Background(), checks, false)
	elapsed := time.Since(start)

	require.Len(t, results, 4)

	// The slow tenant's entries carry explicit timeout markers.
	for _, i := range []int{0, 2} {
		require.NotNil(t, results[i].Error, "entry %d", i)
		require.Equal(t, objects.CheckErrorTimeout, results[i].Error.Code, "entry %d", i)
		require.Equal(t, "slow", results[i].Tenant, "entry %d", i)
	}

	// The healthy tenant's entries are unaffected.
	require.Nil(t, results[1].Error)
	require.True(t, results[1].Allowed)
	require.Nil(t, results[3].Error)
	require.False(t, results[3].Allowed)

	// The batch is bounded by the partition timeout, not by the slow store.
	require.Less(t, elapsed, 5*time.Second)
}

func TestDispatcher_Check(t *testing.T) {
	dispatcher := setupDispatcher(t, store.NewMemoryStore(dispatcherSnapshot()), Config{Shards: 2})

	t.Run("allowed", func(t *testing.T) {
		result := dispatcher.Check(context.Background(), request("john@doe.com", "read", "acme"), false)
		require.Nil(t, result.Error)
		require.True(t, result.Allowed)
	})

	t.Run("routing error without tenant", func(t *testing.T) {
		result := dispatcher.Check(context.Background(), request("john@doe.com", "read", ""), false)
		require.NotNil(t, result.Error)
		require.Equal(t, objects.CheckErrorRouting, result.Error.Code)
	})

	t.Run("trace flag on request", func(t *testing.T) {
		req := request("john@doe.com", "read", "acme")
		req.Trace = true

		result := dispatcher.Check(context.Background(), req, false)
		require.Nil(t, result.Error)
		require.NotNil(t, result.Trace)
		require.Equal(t, "acme", result.Trace.Tenant)
	})
}

func TestDispatcher_BulkCheck_Deterministic(t *testing.T) {
	dispatcher := setupDispatcher(t, store.NewMemoryStore(dispatcherSnapshot()), Config{Shards: 8})

	checks := make([]objects.CheckRequest, 0, 30)
	for i := range 30 {
		tenant := "acme"
		if i%2 == 0 {
			tenant = "beta"
		}

		checks = append(checks, request(fmt.Sprintf("user-%d@doe.com", i%3), "read", tenant))
	}

	first := dispatcher.BulkCheck(context.Background(), checks, false)

	for range 10 {
		if diff := cmp.Diff(first, dispatcher.BulkCheck(context.Background(), checks, false)); diff != "" {
			t.Fatalf("bulk results changed between runs (-first +rerun):\n%s", diff)
		}
	}
}

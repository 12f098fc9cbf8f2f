package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoutingTable_ShardFor(t *testing.T) {
	t.Run("explicit assignment wins", func(t *testing.T) {
		table, err := NewRoutingTable(4, map[string]int{"acme": 3})
		require.NoError(t, err)
		require.Equal(t, 3, table.ShardFor("acme"))
	})

	t.Run("hash routing is deterministic", func(t *testing.T) {
		table, err := NewRoutingTable(16, nil)
		require.NoError(t, err)

		first := table.ShardFor("beta")
		for range 100 {
			require.Equal(t, first, table.ShardFor("beta"))
		}

		require.GreaterOrEqual(t, first, 0)
		require.Less(t, first, 16)
	})

	t.Run("single shard routes everything to zero", func(t *testing.T) {
		table, err := NewRoutingTable(1, nil)
		require.NoError(t, err)

		for _, tenant := range []string{"acme", "beta", "gamma", ""} {
			require.Equal(t, 0, table.ShardFor(tenant))
		}
	})
}

func TestNewRoutingTable(t *testing.T) {
	t.Run("non-positive shard count defaults to one", func(t *testing.T) {
		table, err := NewRoutingTable(0, nil)
		require.NoError(t, err)
		require.Equal(t, 1, table.Shards())
	})

	t.Run("assignment out of range", func(t *testing.T) {
		_, err := NewRoutingTable(4, map[string]int{"acme": 4})
		require.Error(t, err)

		_, err = NewRoutingTable(4, map[string]int{"acme": -1})
		require.Error(t, err)
	})

	t.Run("assignments are copied", func(t *testing.T) {
		assignments := map[string]int{"acme": 1}

		table, err := NewRoutingTable(4, assignments)
		require.NoError(t, err)

		assignments["acme"] = 2
		require.Equal(t, 1, table.ShardFor("acme"))
	})
}

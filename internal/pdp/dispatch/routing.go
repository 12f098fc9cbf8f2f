package dispatch

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// RoutingTable maps tenants to shards. It is built once at configuration
// time so routing decisions are deterministic and auditable: an explicit
// assignment wins, everything else hashes onto the shard ring.
type RoutingTable struct {
	shards      int
	assignments map[string]int
}

// NewRoutingTable validates shard count and explicit assignments.
func NewRoutingTable(shards int, assignments map[string]int) (*RoutingTable, error) {
	if shards <= 0 {
		shards = 1
	}

	for tenant, shard := range assignments {
		if shard < 0 || shard >= shards {
			return nil, fmt.Errorf("tenant %q assigned to shard %d, but only %d shards are configured", tenant, shard, shards)
		}
	}

	copied := make(map[string]int, len(assignments))
	for tenant, shard := range assignments {
		copied[tenant] = shard
	}

	return &RoutingTable{shards: shards, assignments: copied}, nil
}

// Shards returns the number of shards.
func (t *RoutingTable) Shards() int {
	return t.shards
}

// ShardFor returns the authoritative shard for a tenant.
func (t *RoutingTable) ShardFor(tenant string) int {
	if shard, ok := t.assignments[tenant]; ok {
		return shard
	}

	return int(xxhash.Sum64String(tenant) % uint64(t.shards)) //nolint:gosec // shard count is small and positive.
}

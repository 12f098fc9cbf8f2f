// Package dispatch partitions check batches by tenant, routes each partition
// to its policy shard and reassembles results in request order.
package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arbiterhq/arbiter/internal/log"
	"github.com/arbiterhq/arbiter/internal/objects"
	"github.com/arbiterhq/arbiter/internal/pdp"
)

// Config controls batch execution.
type Config struct {
	// QueryTimeout bounds the evaluation latency of each tenant partition.
	QueryTimeout time.Duration `conf:"query_timeout" yaml:"query_timeout" json:"query_timeout"`

	// Shards is the number of policy shards tenants are routed onto.
	Shards int `conf:"shards" yaml:"shards" json:"shards"`

	// TenantAssignments pins tenants to shards explicitly. Unlisted tenants
	// hash onto the shard ring.
	TenantAssignments map[string]int `conf:"tenant_assignments" yaml:"tenant_assignments" json:"tenant_assignments"`

	// DefaultTenant resolves resources that carry no explicit tenant. Empty
	// means such resources fail with a routing error.
	DefaultTenant string `conf:"default_tenant" yaml:"default_tenant" json:"default_tenant"`

	// ShardWorkers bounds concurrent evaluations within one partition.
	ShardWorkers int `conf:"shard_workers" yaml:"shard_workers" json:"shard_workers"`
}

const (
	defaultQueryTimeout = 5 * time.Second
	defaultShardWorkers = 8
)

// Dispatcher executes check batches. Results are always index-aligned with
// the input: every position receives either a decision or an explicit error
// marker, never silence.
type Dispatcher struct {
	evaluator *pdp.Evaluator
	routing   *RoutingTable
	config    Config
}

// New builds a dispatcher with a routing table derived from the config.
func New(evaluator *pdp.Evaluator, config Config) (*Dispatcher, error) {
	routing, err := NewRoutingTable(config.Shards, config.TenantAssignments)
	if err != nil {
		return nil, err
	}

	if config.QueryTimeout <= 0 {
		config.QueryTimeout = defaultQueryTimeout
	}

	if config.ShardWorkers <= 0 {
		config.ShardWorkers = defaultShardWorkers
	}

	return &Dispatcher{
		evaluator: evaluator,
		routing:   routing,
		config:    config,
	}, nil
}

// Routing exposes the routing table.
func (d *Dispatcher) Routing() *RoutingTable {
	return d.routing
}

// ResolveTenant returns the authoritative tenant for a resource.
func (d *Dispatcher) ResolveTenant(resource objects.Resource) (string, error) {
	if resource.Tenant != "" {
		return resource.Tenant, nil
	}

	if d.config.DefaultTenant != "" {
		return d.config.DefaultTenant, nil
	}

	return "", &pdp.RoutingError{ResourceType: resource.Type, ResourceKey: resource.Key}
}

// Check evaluates a single request under the query timeout.
func (d *Dispatcher) Check(ctx context.Context, req objects.CheckRequest, withTrace bool) objects.CheckResult {
	tenant, err := d.ResolveTenant(req.Resource)
	if err != nil {
		return routingResult(err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.QueryTimeout)
	defer cancel()

	return d.evaluator.Check(ctx, tenant, d.routing.ShardFor(tenant), req, withTrace || req.Trace)
}

// indexedCheck retains the original batch position through grouping.
type indexedCheck struct {
	index int
	req   objects.CheckRequest
}

// BulkCheck evaluates an ordered batch. Requests are grouped by resolved
// tenant; partitions run independently, so a timeout or failure in one tenant
// never affects another tenant's entries.
func (d *Dispatcher) BulkCheck(ctx context.Context, checks []objects.CheckRequest, withTrace bool) []objects.CheckResult {
	results := make([]objects.CheckResult, len(checks))
	if len(checks) == 0 {
		return results
	}

	// Stable grouping: tenants keep first-appearance order, entries keep
	// their original index.
	groups := make(map[string][]indexedCheck)
	tenants := make([]string, 0, 4)

	for i, req := range checks {
		tenant, err := d.ResolveTenant(req.Resource)
		if err != nil {
			results[i] = routingResult(err)
			continue
		}

		if _, ok := groups[tenant]; !ok {
			tenants = append(tenants, tenant)
		}

		groups[tenant] = append(groups[tenant], indexedCheck{index: i, req: req})
	}

	var wg errgroup.Group

	for _, tenant := range tenants {
		entries := groups[tenant]

		wg.Go(func() error {
			d.runPartition(ctx, tenant, entries, results, withTrace)
			return nil
		})
	}

	_ = wg.Wait()

	return results
}

// runPartition evaluates one tenant's entries against its shard. Result slots
// for this partition are written only here, so partitions never contend.
func (d *Dispatcher) runPartition(ctx context.Context, tenant string, entries []indexedCheck, results []objects.CheckResult, withTrace bool) {
	shard := d.routing.ShardFor(tenant)

	partitionCtx, cancel := context.WithTimeout(ctx, d.config.QueryTimeout)
	defer cancel()

	type outcome struct {
		pos    int
		result objects.CheckResult
	}

	outcomes := make(chan outcome, len(entries))

	var g errgroup.Group
	g.SetLimit(d.config.ShardWorkers)

	for pos, entry := range entries {
		g.Go(func() error {
			outcomes <- outcome{
				pos:    pos,
				result: d.evaluator.Check(partitionCtx, tenant, shard, entry.req, withTrace || entry.req.Trace),
			}

			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(outcomes)
	}()

	done := make([]bool, len(entries))
	remaining := len(entries)

	for remaining > 0 {
		select {
		case out, ok := <-outcomes:
			if !ok {
				remaining = 0
				break
			}

			results[entries[out.pos].index] = out.result
			done[out.pos] = true
			remaining--
		case <-partitionCtx.Done():
			// The partition exceeded its deadline. Unresolved entries are marked
			// explicitly; in-flight evaluations observe the cancelled context.
			for pos, entry := range entries {
				if !done[pos] {
					results[entry.index] = timeoutResult(tenant)
				}
			}

			log.Warn(ctx, "tenant partition timed out",
				log.String("tenant", tenant),
				log.Int("shard", shard),
				log.Int("entries", len(entries)),
				log.Duration("timeout", d.config.QueryTimeout),
			)

			return
		}
	}
}

func timeoutResult(tenant string) objects.CheckResult {
	return objects.CheckResult{
		Tenant: tenant,
		Error: &objects.CheckError{
			Code:    objects.CheckErrorTimeout,
			Message: pdp.ErrTimeout.Error(),
		},
	}
}

func routingResult(err error) objects.CheckResult {
	return objects.CheckResult{
		Error: &objects.CheckError{
			Code:    objects.CheckErrorRouting,
			Message: err.Error(),
		},
	}
}

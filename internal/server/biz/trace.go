package biz

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/arbiterhq/arbiter/internal/log"
	"github.com/arbiterhq/arbiter/internal/objects"
	"github.com/arbiterhq/arbiter/internal/pkg/ringbuffer"
	"github.com/arbiterhq/arbiter/internal/pkg/xmap"
)

// TraceConfig sizes the per-tenant retention of evaluation traces.
type TraceConfig struct {
	// BufferSize is the number of recent traces kept per tenant.
	BufferSize int `conf:"buffer_size" yaml:"buffer_size" json:"buffer_size"`
}

const defaultTraceBufferSize = 256

// RecordedTrace is one retained debug evaluation.
type RecordedTrace struct {
	At           time.Time                `json:"at"`
	Principal    string                   `json:"principal"`
	Action       string                   `json:"action"`
	ResourceType string                   `json:"resource_type"`
	ResourceKey  string                   `json:"resource_key,omitempty"`
	Allowed      bool                     `json:"allowed"`
	Trace        *objects.EvaluationTrace `json:"trace"`
}

// TraceService retains recent evaluation traces per tenant, in memory.
// Buffers are strictly tenant-scoped: one tenant's traces are never visible
// through another tenant's buffer.
type TraceService struct {
	size    int
	buffers *xmap.Map[string, *ringbuffer.RingBuffer[RecordedTrace]]
	seq     atomic.Int64
}

func NewTraceService(config TraceConfig) *TraceService {
	size := config.BufferSize
	if size <= 0 {
		size = defaultTraceBufferSize
	}

	return &TraceService{
		size:    size,
		buffers: xmap.New[string, *ringbuffer.RingBuffer[RecordedTrace]](),
	}
}

// Record retains a traced result. Results without a trace are ignored, so
// the decision hot path never pays for retention.
func (s *TraceService) Record(ctx context.Context, req objects.CheckRequest, result objects.CheckResult) {
	if result.Trace == nil {
		return
	}

	buffer, loaded := s.buffers.LoadOrStore(result.Trace.Tenant, ringbuffer.New[RecordedTrace](s.size))
	if !loaded {
		log.Debug(ctx, "trace buffer created", log.String("tenant", result.Trace.Tenant))
	}

	buffer.Push(s.seq.Add(1), RecordedTrace{
		At:           time.Now(),
		Principal:    req.Principal.Key,
		Action:       req.Action,
		ResourceType: req.Resource.Type,
		ResourceKey:  req.Resource.Key,
		Allowed:      result.Allowed,
		Trace:        result.Trace,
	})
}

// Recent returns up to limit retained traces for a tenant, newest first.
func (s *TraceService) Recent(tenant string, limit int) []RecordedTrace {
	buffer, ok := s.buffers.Load(tenant)
	if !ok {
		return nil
	}

	traces := lo.Map(buffer.GetAll(), func(item ringbuffer.Item[RecordedTrace], _ int) RecordedTrace {
		return item.Value
	})
	lo.Reverse(traces)

	if limit > 0 && len(traces) > limit {
		traces = traces[:limit]
	}

	return traces
}

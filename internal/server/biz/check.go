package biz

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/arbiterhq/arbiter/internal/objects"
	"github.com/arbiterhq/arbiter/internal/pdp/dispatch"
	"github.com/arbiterhq/arbiter/internal/pkg/xcontext"
)

// CheckService fronts the dispatcher for the decision endpoints and records
// decision metrics.
type CheckService struct {
	dispatcher *dispatch.Dispatcher
	traces     *TraceService

	checks  metric.Int64Counter
	latency metric.Float64Histogram
}

func NewCheckService(dispatcher *dispatch.Dispatcher, traces *TraceService) (*CheckService, error) {
	meter := otel.Meter("github.com/arbiterhq/arbiter/check")

	checks, err := meter.Int64Counter("arbiter.checks",
		metric.WithDescription("Authorization decisions by outcome."),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("arbiter.check.duration",
		metric.WithDescription("Authorization decision latency."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &CheckService{
		dispatcher: dispatcher,
		traces:     traces,
		checks:     checks,
		latency:    latency,
	}, nil
}

// Check evaluates a single request.
func (s *CheckService) Check(ctx context.Context, req objects.CheckRequest) objects.CheckResult {
	start := time.Now()
	result := s.dispatcher.Check(ctx, req, false)
	s.record(ctx, start, result)

	return result
}

// BulkCheck evaluates an ordered batch. The response is index-aligned with
// the request.
func (s *CheckService) BulkCheck(ctx context.Context, reqs []objects.CheckRequest) []objects.CheckResult {
	start := time.Now()
	results := s.dispatcher.BulkCheck(ctx, reqs, false)

	for _, result := range results {
		s.record(ctx, start, result)
	}

	return results
}

// Debug evaluates a single request with a full evaluation trace attached.
// The trace is retained for later inspection through the admin API.
func (s *CheckService) Debug(ctx context.Context, req objects.CheckRequest) objects.CheckResult {
	start := time.Now()
	result := s.dispatcher.Check(ctx, req, true)
	s.record(ctx, start, result)

	go func() {
		ctx, cancel := xcontext.DetachWithTimeout(ctx, time.Second)
		defer cancel()

		s.traces.Record(ctx, req, result)
	}()

	return result
}

func (s *CheckService) record(ctx context.Context, start time.Time, result objects.CheckResult) {
	outcome := strconv.FormatBool(result.Allowed)
	if result.Error != nil {
		outcome = result.Error.Code
	}

	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("tenant", result.Tenant),
	)

	s.checks.Add(ctx, 1, attrs)
	s.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000.0, attrs)
}

package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// WithMetrics records request count and latency per route and status.
func WithMetrics() gin.HandlerFunc {
	meter := otel.Meter("github.com/arbiterhq/arbiter/http")

	requests, err := meter.Int64Counter("arbiter.http.requests",
		metric.WithDescription("HTTP requests by route and status."),
	)
	if err != nil {
		return func(c *gin.Context) { c.Next() }
	}

	latency, err := meter.Float64Histogram("arbiter.http.duration",
		metric.WithDescription("HTTP request latency."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
			attribute.String("status", strconv.Itoa(c.Writer.Status())),
		)

		ctx := c.Request.Context()
		requests.Add(ctx, 1, attrs)
		latency.Record(ctx, float64(time.Since(start).Microseconds())/1000.0, attrs)
	}
}

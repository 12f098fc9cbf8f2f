// Package metrics builds the OpenTelemetry meter provider the service
// publishes decision and HTTP metrics through.
package metrics

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdk "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/arbiterhq/arbiter/internal/build"
	"github.com/arbiterhq/arbiter/internal/log"
)

// Exporter names.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

type Config struct {
	Enabled bool `conf:"enabled" yaml:"enabled" json:"enabled"`

	// Exporter is stdout or otlp.
	Exporter string `conf:"exporter" yaml:"exporter" json:"exporter"`

	// Endpoint is the OTLP gRPC endpoint, host:port.
	Endpoint string `conf:"endpoint" yaml:"endpoint" json:"endpoint"`

	// Insecure disables TLS for the OTLP connection.
	Insecure bool `conf:"insecure" yaml:"insecure" json:"insecure"`

	// ServiceName identifies the service on exported metrics.
	ServiceName string `conf:"service_name" yaml:"service_name" json:"service_name"`

	Interval time.Duration `conf:"interval" yaml:"interval" json:"interval"`
}

// NewProvider builds the meter provider, or nil when metrics are disabled.
func NewProvider(config Config) (*sdk.MeterProvider, error) {
	if !config.Enabled {
		return nil, nil
	}

	interval := config.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	serviceName := config.ServiceName
	if serviceName == "" {
		serviceName = "arbiter"
	}

	var (
		exporter sdk.Exporter
		err      error
	)

	switch config.Exporter {
	case ExporterOTLP:
		opts := []otlpmetricgrpc.Option{}
		if config.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(config.Endpoint))
		}

		if config.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}

		exporter, err = otlpmetricgrpc.New(context.Background(), opts...)
	case ExporterStdout, "":
		exporter, err = stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", config.Exporter)
	}

	if err != nil {
		return nil, fmt.Errorf("build metrics exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(build.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("build metrics resource: %w", err)
	}

	provider := sdk.NewMeterProvider(
		sdk.WithResource(res),
		sdk.WithReader(sdk.NewPeriodicReader(exporter, sdk.WithInterval(interval))),
	)

	return provider, nil
}

// SetupMetrics installs the provider as the global meter provider.
func SetupMetrics(provider *sdk.MeterProvider, serviceName string) error {
	otel.SetMeterProvider(provider)

	log.Info(context.Background(), "metrics enabled", log.String("service", serviceName))

	return nil
}

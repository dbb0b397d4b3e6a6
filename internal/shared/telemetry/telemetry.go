package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"

	"github.com/nemanja-m/parmr/internal/shared/config"
	"github.com/nemanja-m/parmr/internal/shared/logging"
	"github.com/nemanja-m/parmr/pkg/local"
)

const instrumentationName = "github.com/nemanja-m/parmr"

// Providers exports run spans and task metrics over OTLP/HTTP. The zero value
// is disabled and leaves runs on the global no-op providers.
type Providers struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// Setup creates OTLP exporters for cfg.Endpoint. An empty endpoint disables
// export. Exporters connect lazily, so an unreachable collector only shows up
// as export errors.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger logging.Logger) (*Providers, error) {
	if cfg.Endpoint == "" {
		logger.Info("Telemetry export disabled")
		return &Providers{}, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}

	traceExporter, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	metricExporter, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	p := &Providers{
		tracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
		),
		meterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
				sdkmetric.WithInterval(cfg.MetricInterval))),
			sdkmetric.WithResource(res),
		),
	}
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetMeterProvider(p.meterProvider)

	logger.Info("Telemetry export enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"metric_interval", cfg.MetricInterval.String(),
	)
	return p, nil
}

func (p *Providers) Enabled() bool {
	return p.tracerProvider != nil
}

// EngineOptions returns the options that route run telemetry to the
// exporters, or nil when export is disabled.
func (p *Providers) EngineOptions() []local.Option {
	if !p.Enabled() {
		return nil
	}
	return []local.Option{
		local.WithTracer(p.tracerProvider.Tracer(instrumentationName)),
		local.WithMeter(p.meterProvider.Meter(instrumentationName)),
	}
}

// Shutdown flushes pending spans and metrics.
func (p *Providers) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return errors.Join(
		p.tracerProvider.Shutdown(ctx),
		p.meterProvider.Shutdown(ctx),
	)
}

// Package telemetry wires OpenTelemetry tracing and metrics for the launcher.
// With telemetry disabled the global no-op providers stay installed, so spans
// and counters cost nothing.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config selects exporters. Endpoint is host:port of an OTLP/HTTP collector.
type Config struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	Endpoint       string  `mapstructure:"endpoint"`
	Insecure       bool    `mapstructure:"insecure"`
	SamplingRatio  float64 `mapstructure:"sampling_ratio"`
}

// Provider owns the SDK providers and the launcher's instruments.
type Provider struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
	Metrics        *Metrics
}

// NewProvider installs global providers when cfg.Enabled; instruments are
// always created so callers never need to nil-check.
func NewProvider(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	p := &Provider{}
	if cfg.Enabled {
		if cfg.ServiceName == "" {
			cfg.ServiceName = "arcade"
		}
		if cfg.SamplingRatio <= 0 {
			cfg.SamplingRatio = 1
		}
		res, err := resource.New(ctx, resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		))
		if err != nil {
			return nil, fmt.Errorf("telemetry resource: %w", err)
		}
		if p.TracerProvider, err = initTracing(ctx, res, cfg); err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		otel.SetTracerProvider(p.TracerProvider)
		if p.MeterProvider, err = initMetrics(ctx, res, cfg); err != nil {
			_ = p.TracerProvider.Shutdown(ctx)
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		otel.SetMeterProvider(p.MeterProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		if logger != nil {
			logger.Info("telemetry enabled", "endpoint", cfg.Endpoint, "sampling", cfg.SamplingRatio)
		}
	}
	m, err := NewMetrics(otel.Meter(instrumentationName))
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	p.Metrics = m
	return p, nil
}

func initTracing(ctx context.Context, res *resource.Resource, cfg Config) (*trace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithURLPath("/v1/traces")}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exp, trace.WithBatchTimeout(5*time.Second)),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.SamplingRatio))),
	), nil
}

func initMetrics(ctx context.Context, res *resource.Resource, cfg Config) (*metric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithURLPath("/v1/metrics")}
	if cfg.Endpoint != "" {
		opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exp, metric.WithInterval(30*time.Second))),
	), nil
}

// Shutdown flushes and stops the SDK providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Config struct {
	Logger      *slog.Logger
	ServiceName string
	Environment string
	// OTLPEndpoint receives spans over gRPC. Empty keeps tracing in-process
	// so spans still carry ids for log correlation.
	OTLPEndpoint string
	MetricsPort  string
}

// Provider owns the global meter and tracer providers and the /metrics
// listener. Shutdown flushes pending spans and stops the listener.
type Provider struct {
	logger  *slog.Logger
	meters  *sdkmetric.MeterProvider
	tracers *sdktrace.TracerProvider
	metrics *http.Server
}

// Init installs Prometheus-backed metrics and OTLP tracing as the otel
// globals and starts serving /metrics on cfg.MetricsPort.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build otel resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	p := &Provider{
		logger: logger,
		meters: sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exporter)),
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.OTLPEndpoint != "" {
		spans, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to create trace exporter: %w", err), p.meters.Shutdown(ctx))
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spans, sdktrace.WithBatchTimeout(5*time.Second)))
	}
	p.tracers = sdktrace.NewTracerProvider(traceOpts...)

	otel.SetMeterProvider(p.meters)
	otel.SetTracerProvider(p.tracers)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	p.metrics = &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go p.serveMetrics()

	logger.Info("telemetry initialized", "metrics_addr", p.metrics.Addr, "otlp_endpoint", cfg.OTLPEndpoint)
	return p, nil
}

func (p *Provider) serveMetrics() {
	if err := p.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		p.logger.Error("metrics server failed", "error", err)
	}
}

// Shutdown stops the metrics listener and flushes both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	err := errors.Join(
		p.metrics.Shutdown(ctx),
		p.tracers.Shutdown(ctx),
		p.meters.Shutdown(ctx),
	)
	if err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}

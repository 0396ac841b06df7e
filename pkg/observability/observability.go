// Package observability exports traces and metrics over OTLP gRPC.
// The provider is optional: when no collector endpoint is configured
// the orchestrator runs with a no-op metrics sink and no exporters.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is the OTLP gRPC collector address, e.g. "localhost:4317".
	Endpoint     string
	BatchTimeout time.Duration
	// Insecure disables transport security toward the collector.
	Insecure bool
}

// Provider owns the trace and metric pipelines and the orchestrator's
// counters. It satisfies the engine's Metrics interface.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	logger         *slog.Logger

	tasksCreated      metric.Int64Counter
	tasksFinished     metric.Int64Counter
	policyBlocked     metric.Int64Counter
	retriesStarted    metric.Int64Counter
	approvalsResolved metric.Int64Counter
}

// New connects the OTLP exporters and registers the counters.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "nestclaw"
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Second
	}

	p := &Provider{
		logger: slog.Default().With("component", "observability"),
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)
	otel.SetMeterProvider(p.meterProvider)

	p.tracer = otel.Tracer("nestclaw", trace.WithInstrumentationVersion(cfg.ServiceVersion))

	meter := otel.Meter("nestclaw", metric.WithInstrumentationVersion(cfg.ServiceVersion))
	if err := p.initCounters(meter); err != nil {
		return nil, fmt.Errorf("register counters: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", cfg.ServiceName, "endpoint", cfg.Endpoint)
	return p, nil
}

func (p *Provider) initCounters(meter metric.Meter) error {
	var err error
	p.tasksCreated, err = meter.Int64Counter("nestclaw.tasks.created",
		metric.WithDescription("Tasks accepted for orchestration"),
		metric.WithUnit("{task}"))
	if err != nil {
		return err
	}
	p.tasksFinished, err = meter.Int64Counter("nestclaw.tasks.finished",
		metric.WithDescription("Tasks that reached DONE, by outcome"),
		metric.WithUnit("{task}"))
	if err != nil {
		return err
	}
	p.policyBlocked, err = meter.Int64Counter("nestclaw.policy.blocked",
		metric.WithDescription("Pipeline passes halted by the policy gate"),
		metric.WithUnit("{pass}"))
	if err != nil {
		return err
	}
	p.retriesStarted, err = meter.Int64Counter("nestclaw.retries.started",
		metric.WithDescription("Automatic pipeline retries"),
		metric.WithUnit("{retry}"))
	if err != nil {
		return err
	}
	p.approvalsResolved, err = meter.Int64Counter("nestclaw.approvals.resolved",
		metric.WithDescription("Human decisions on queue items, by decision"),
		metric.WithUnit("{decision}"))
	return err
}

// Tracer returns the tracer the engine uses for pipeline-pass spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// TaskCreated counts an accepted task.
func (p *Provider) TaskCreated(ctx context.Context) {
	p.tasksCreated.Add(ctx, 1)
}

// TaskFinished counts a terminal task with its outcome.
func (p *Provider) TaskFinished(ctx context.Context, outcome string) {
	p.tasksFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// PolicyBlocked counts a policy gate hit.
func (p *Provider) PolicyBlocked(ctx context.Context, reasonCode string) {
	p.policyBlocked.Add(ctx, 1, metric.WithAttributes(attribute.String("reason_code", reasonCode)))
}

// RetryStarted counts an automatic retry.
func (p *Provider) RetryStarted(ctx context.Context) {
	p.retriesStarted.Add(ctx, 1)
}

// ApprovalResolved counts a human decision.
func (p *Provider) ApprovalResolved(ctx context.Context, decision string) {
	p.approvalsResolved.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

// Shutdown flushes and stops both pipelines.
func (p *Provider) Shutdown(ctx context.Context) error {
	var firstErr error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

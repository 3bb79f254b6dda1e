package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kestrelsec/graphaudit/internal/config"
)

// Telemetry records scan and finding metrics. Disabled configs get a no-op
// implementation so call sites never need nil checks.
type Telemetry interface {
	RecordAnalysis(kind string, duration float64, success bool)
	RecordFinding(severity string, positive bool)
	Close() error
}

type telemetry struct {
	tracer         trace.Tracer
	meter          metric.Meter
	tracerProvider *sdktrace.TracerProvider

	analysisCounter  metric.Int64Counter
	analysisDuration metric.Float64Histogram
	findingCounter   metric.Int64Counter
}

func New(ctx context.Context, cfg config.TelemetryConfig) (Telemetry, error) {
	if !cfg.Enabled {
		return &noopTelemetry{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter

	switch cfg.ExporterType {
	case "otlp":
		client := otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		exp, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer := tp.Tracer(cfg.ServiceName)
	meter := otel.Meter(cfg.ServiceName)

	analysisCounter, err := meter.Int64Counter("graphaudit.analyses.total",
		metric.WithDescription("Total number of endpoint analyses"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	analysisDuration, err := meter.Float64Histogram("graphaudit.analysis.duration",
		metric.WithDescription("Analysis duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	findingCounter, err := meter.Int64Counter("graphaudit.findings.total",
		metric.WithDescription("Total number of audit findings"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &telemetry{
		tracer:           tracer,
		meter:            meter,
		tracerProvider:   tp,
		analysisCounter:  analysisCounter,
		analysisDuration: analysisDuration,
		findingCounter:   findingCounter,
	}, nil
}

func (t *telemetry) RecordAnalysis(kind string, duration float64, success bool) {
	ctx := context.Background()

	attrs := []attribute.KeyValue{
		attribute.String("analysis.kind", kind),
		attribute.Bool("analysis.success", success),
	}

	t.analysisCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	t.analysisDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
}

func (t *telemetry) RecordFinding(severity string, positive bool) {
	ctx := context.Background()

	attrs := []attribute.KeyValue{
		attribute.String("finding.severity", severity),
		attribute.Bool("finding.positive", positive),
	}

	t.findingCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (t *telemetry) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.tracerProvider.Shutdown(ctx)
}

type noopTelemetry struct{}

func (n *noopTelemetry) RecordAnalysis(kind string, duration float64, success bool) {}
func (n *noopTelemetry) RecordFinding(severity string, positive bool)               {}
func (n *noopTelemetry) Close() error                                               { return nil }

package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentation = "github.com/roboricindustries/raycon-bus"

// Config holds the OTLP exporter settings. Tracing is off unless Enabled.
type Config struct {
	Enabled        bool          `env:"TRACING_ENABLED" envDefault:"false"`
	ServiceName    string        `env:"TRACING_SERVICE_NAME" envDefault:"raycon-notifier"`
	ServiceVersion string        `env:"TRACING_SERVICE_VERSION" envDefault:"1.0.0"`
	Endpoint       string        `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	Insecure       bool          `env:"OTLP_INSECURE" envDefault:"true"`
	SampleRate     float64       `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
	BatchTimeout   time.Duration `env:"TRACING_BATCH_TIMEOUT" envDefault:"1s"`
	ExportTimeout  time.Duration `env:"TRACING_EXPORT_TIMEOUT" envDefault:"30s"`
}

// Tracer wraps an OpenTelemetry tracer with helpers for bus spans.
type Tracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// New wraps tp. A nil provider yields a no-op tracer that still
// propagates trace context through message headers.
func New(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Tracer{
		tracer: tp.Tracer(instrumentation),
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}
}

// Noop returns a tracer that records nothing.
func Noop() *Tracer { return New(nil) }

// Setup installs an OTLP/HTTP tracer provider globally and returns the
// wrapper plus a shutdown func that flushes pending spans.
func Setup(ctx context.Context, config Config) (*Tracer, func(context.Context) error, error) {
	if !config.Enabled {
		return Noop(), func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.Endpoint),
		otlptracehttp.WithTimeout(config.ExportTimeout),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(config.BatchTimeout),
			sdktrace.WithExportTimeout(config.ExportTimeout),
		),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
	)
	otel.SetTracerProvider(tp)

	t := New(tp)
	otel.SetTextMapPropagator(t.propagator)

	shutdown := func(ctx context.Context) error {
		if err := tp.ForceFlush(ctx); err != nil {
			return fmt.Errorf("failed to flush traces: %w", err)
		}
		return tp.Shutdown(ctx)
	}
	return t, shutdown, nil
}

// StartPublish starts a producer span for one event.
func (t *Tracer) StartPublish(ctx context.Context, backend, eventType, eventID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "publish "+eventType,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(MessageAttributes(backend, eventType, eventID)...),
	)
}

// StartDispatch starts a consumer span linked to the producer through ctx.
func (t *Tracer) StartDispatch(ctx context.Context, backend, eventType, eventID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "process "+eventType,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(MessageAttributes(backend, eventType, eventID)...),
	)
}

// Inject writes the trace context of ctx into headers.
func (t *Tracer) Inject(ctx context.Context, headers map[string]string) {
	t.propagator.Inject(ctx, propagation.MapCarrier(headers))
}

// Extract returns ctx enriched with the trace context found in headers.
func (t *Tracer) Extract(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return t.propagator.Extract(ctx, propagation.MapCarrier(headers))
}

func MessageAttributes(backend, eventType, eventID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.MessagingSystemKey.String(backend),
		semconv.MessagingDestinationName(eventType),
		semconv.MessagingMessageID(eventID),
	}
}

// RecordError marks span as failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

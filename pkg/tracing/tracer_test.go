package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestPropagationThroughHeaders(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tr := New(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	ctx, span := tr.StartPublish(context.Background(), "rabbitmq", "SendEmailNotificationEvent", "id-1")
	headers := map[string]string{}
	tr.Inject(ctx, headers)
	span.End()

	require.Contains(t, headers, "traceparent")

	dctx, dspan := tr.StartDispatch(tr.Extract(context.Background(), headers), "rabbitmq", "SendEmailNotificationEvent", "id-1")
	dspan.End()

	assert.Equal(t,
		trace.SpanContextFromContext(ctx).TraceID(),
		trace.SpanContextFromContext(dctx).TraceID(),
	)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "publish SendEmailNotificationEvent", spans[0].Name())
	assert.Equal(t, trace.SpanKindProducer, spans[0].SpanKind())
	assert.Equal(t, "process SendEmailNotificationEvent", spans[1].Name())
	assert.Equal(t, spans[0].SpanContext().SpanID(), spans[1].Parent().SpanID())
}

func TestRecordError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tr := New(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	_, span := tr.StartDispatch(context.Background(), "kafka", "CallMissedEvent", "id-2")
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, codes.Error, rec.Ended()[0].Status().Code)
	assert.Equal(t, "boom", rec.Ended()[0].Status().Description)
}

func TestSetupDisabledIsNoop(t *testing.T) {
	tr, shutdown, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.NoError(t, shutdown(context.Background()))

	_, span := tr.StartPublish(context.Background(), "embedded", "x", "y")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roboricindustries/raycon-bus/pkg/jsoncodec"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/accounts"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/notifications"
	"github.com/roboricindustries/raycon-bus/pkg/tracing"
	"github.com/roboricindustries/raycon-bus/pkg/transport"
)

func TestPublish_TransportErrorReturnedUnmodified(t *testing.T) {
	broker := newFakeBroker()
	brokerDown := errors.New("broker down")
	broker.publishErr = brokerDown
	b := newBrokerBus(t, NewRegistry(), broker)

	_, err := PublishAsync(context.Background(), b.Publisher(), notifications.SendEmailNotificationEvent{To: "a@x.com", Subject: "s"})
	assert.Same(t, brokerDown, err)
}

func TestPublish_NilPublisher(t *testing.T) {
	_, err := PublishAsync[notifications.SendEmailNotificationEvent](context.Background(), nil, notifications.SendEmailNotificationEvent{})
	assert.ErrorIs(t, err, ErrNilPublisher)

	var p *Publisher
	_, err = p.Publish(context.Background(), notifications.SendEmailNotificationEvent{})
	assert.ErrorIs(t, err, ErrNilPublisher)
}

func TestPublish_MessageShape(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tracer := tracing.New(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	broker := newFakeBroker()
	b, err := New(context.Background(), Config{Producer: "accounts-api"}, NewRegistry(),
		WithLogger(discard()),
		WithTracer(tracer),
		WithTransport(func(transport.Dispatcher) transport.Transport { return broker }),
	)
	require.NoError(t, err)

	payload := accounts.UserRegisteredEvent{UserID: "u1", Email: "u1@x.com", DisplayName: "Ula"}
	env, err := PublishAsyncWith(context.Background(), b.Publisher(), payload, WithCorrelationID("req-42"))
	require.NoError(t, err)

	require.Len(t, broker.published, 1)
	msg := broker.published[0]
	assert.Equal(t, env.Meta.ID, msg.ID)
	assert.Equal(t, "UserRegisteredEvent", msg.Type)
	assert.Equal(t, env.Meta.Time, msg.Timestamp)
	assert.Equal(t, "req-42", msg.Headers[transport.HeaderCorrelation])
	assert.Equal(t, env.Meta.ID, msg.Headers[transport.HeaderEventID])
	assert.NotEmpty(t, msg.Headers["traceparent"])

	var wire common.GenericEnvelope[accounts.UserRegisteredEvent]
	require.NoError(t, jsoncodec.Unmarshal(msg.Body, &wire))
	assert.Equal(t, payload, wire.Data)
	require.NotNil(t, wire.Meta.Producer)
	assert.Equal(t, "accounts-api", *wire.Meta.Producer)
	assert.Equal(t, "req-42", wire.Meta.Correlation())

	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "publish UserRegisteredEvent", rec.Ended()[0].Name())
}

func TestPublish_NonGeneric(t *testing.T) {
	broker := newFakeBroker()
	b := newBrokerBus(t, NewRegistry(), broker)

	meta, err := b.Publisher().Publish(context.Background(), accounts.AccountDeletedEvent{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "AccountDeletedEvent", meta.Type)
	assert.Equal(t, meta.ID, meta.Correlation())

	_, err = b.Publisher().Publish(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilEvent)
}

package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roboricindustries/raycon-bus/pkg/jsoncodec"
	"github.com/roboricindustries/raycon-bus/pkg/metrics"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
	"github.com/roboricindustries/raycon-bus/pkg/tracing"
	"github.com/roboricindustries/raycon-bus/pkg/transport"
)

// Publisher hands events to the active backend. A nil error means the
// transport accepted the event, not that it was handled.
type Publisher struct {
	transport transport.Transport
	producer  string
	tracer    *tracing.Tracer
	metrics   *metrics.Registry
	logger    *slog.Logger
	closed    atomic.Bool
}

type PublishOption func(*common.Meta)

// WithCorrelationID ties the event to a request or a parent event.
func WithCorrelationID(id string) PublishOption {
	return func(m *common.Meta) {
		if id != "" {
			m.CorrelationID = &id
		}
	}
}

// WithProducer overrides the producer stamped into the envelope.
func WithProducer(name string) PublishOption {
	return func(m *common.Meta) {
		if name != "" {
			m.Producer = &name
		}
	}
}

// PublishAsync wraps payload in a fresh envelope and publishes it. The
// returned envelope carries the generated event id.
func PublishAsync[T common.Event](ctx context.Context, p *Publisher, payload T) (common.GenericEnvelope[T], error) {
	return PublishAsyncWith(ctx, p, payload)
}

func PublishAsyncWith[T common.Event](ctx context.Context, p *Publisher, payload T, opts ...PublishOption) (common.GenericEnvelope[T], error) {
	if p == nil {
		return common.GenericEnvelope[T]{}, ErrNilPublisher
	}
	env := common.NewEnvelope(payload)
	p.stamp(&env.Meta, opts)
	return env, p.send(ctx, env.Meta, env)
}

// Publish is the non-generic form used by code that holds payloads as
// common.Event values.
func (p *Publisher) Publish(ctx context.Context, payload common.Event, opts ...PublishOption) (common.Meta, error) {
	if p == nil {
		return common.Meta{}, ErrNilPublisher
	}
	if payload == nil {
		return common.Meta{}, ErrNilEvent
	}
	env := common.NewEnvelope(payload)
	p.stamp(&env.Meta, opts)
	return env.Meta, p.send(ctx, env.Meta, env)
}

func (p *Publisher) stamp(m *common.Meta, opts []PublishOption) {
	if p.producer != "" {
		producer := p.producer
		m.Producer = &producer
	}
	for _, opt := range opts {
		opt(m)
	}
}

// send returns transport errors exactly as the backend produced them.
func (p *Publisher) send(ctx context.Context, meta common.Meta, env any) error {
	if p.closed.Load() {
		return transport.ErrClosed
	}
	backend := p.transport.Name()
	logger := p.logger.With(
		slog.String("event_type", meta.Type),
		slog.String("event_id", meta.ID),
	)
	logger.Info("publishing event", slog.String("backend", backend))

	body, err := jsoncodec.Marshal(env)
	if err != nil {
		logger.Error("encode event failed", slog.Any("error", err))
		return fmt.Errorf("encode %s: %w", meta.Type, err)
	}

	ctx, span := p.tracer.StartPublish(ctx, backend, meta.Type, meta.ID)
	defer span.End()

	headers := map[string]string{
		transport.HeaderEventType:   meta.Type,
		transport.HeaderEventID:     meta.ID,
		transport.HeaderCorrelation: meta.Correlation(),
	}
	p.tracer.Inject(ctx, headers)

	start := time.Now()
	err = p.transport.Publish(ctx, transport.Message{
		ID:        meta.ID,
		Type:      meta.Type,
		Timestamp: meta.Time,
		Body:      body,
		Headers:   headers,
	})
	p.metrics.RecordPublish(meta.Type, backend, time.Since(start), err)
	if err != nil {
		tracing.RecordError(span, err)
		logger.Error("publish failed", slog.Any("error", err))
		return err
	}
	return nil
}

package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
	"github.com/roboricindustries/raycon-bus/pkg/transport"
)

var errDeliveriesClosed = errors.New("delivery channel closed")

// channelPublisher is the subset of *amqp.Channel used to move a delivery
// to the dead-letter exchange.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// consumerChannel is the subset of *amqp.Channel used to attach a consumer.
type consumerChannel interface {
	declarer
	Qos(prefetchCount, prefetchSize int, global bool) error
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Consume runs the consumer loop for eventType until ctx is done. When the
// channel or connection drops it backs off, reconnects through the manager,
// re-declares topology and resumes.
func (t *Transport) Consume(ctx context.Context, eventType string, d transport.Dispatcher) error {
	names := t.cfg.names(eventType)
	logger := t.logger.With("event_type", eventType, "queue", names.Queue)

	base := orDuration(t.cfg.ReconnectBackoffBase, time.Second)
	ceiling := orDuration(t.cfg.ReconnectBackoffCap, 30*time.Second)
	backoff := base

	for {
		attached, err := t.consumeOnce(ctx, names, d, logger)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, transport.ErrClosed) {
			return err
		}
		if attached {
			backoff = base
		}
		wait := jitteredDelay(backoff, ceiling, t.cfg.ReconnectJitterPercent)
		logger.Error("consumer interrupted, reconnecting", slog.Any("error", err), slog.Duration("retry_in", wait))
		if !sleepCtx(ctx, wait) {
			return nil
		}
		backoff = nextBackoff(backoff, ceiling)
	}
}

// consumeOnce attaches one consumer and processes deliveries until the
// channel dies or ctx ends. attached reports whether consumption started.
func (t *Transport) consumeOnce(ctx context.Context, names common.EventMeta, d transport.Dispatcher, logger *slog.Logger) (attached bool, err error) {
	ch, err := t.mgr.Channel(ctx)
	if err != nil {
		return false, err
	}
	defer safeClose(ch)

	deliveries, err := t.attach(ctx, ch, names)
	if err != nil {
		return false, err
	}
	closeCh := ch.NotifyClose(make(chan *amqp.Error, 1))

	t.metrics.ConsumerStarted(Name)
	defer t.metrics.ConsumerStopped(Name)
	logger.Info("consumer started", slog.Int("prefetch", t.cfg.prefetch()))

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case cerr := <-closeCh:
			if cerr == nil {
				return true, errDeliveriesClosed
			}
			return true, fmt.Errorf("channel closed: %w", cerr)
		case dv, ok := <-deliveries:
			if !ok {
				return true, errDeliveriesClosed
			}
			if err := t.handle(ctx, ch, names, dv, d, logger); err != nil {
				return true, err
			}
		}
	}
}

// attach sets prefetch, declares the queue family and starts consuming.
// Topology is declared on every attach, not only once per connection, so a
// queue deleted while the connection stayed up is recreated.
func (t *Transport) attach(ctx context.Context, ch consumerChannel, names common.EventMeta) (<-chan amqp.Delivery, error) {
	if err := ch.Qos(t.cfg.prefetch(), 0, false); err != nil {
		return nil, fmt.Errorf("qos: %w", err)
	}
	if err := t.mgr.DeclareTopology(ch, names); err != nil {
		return nil, err
	}
	tag := names.EventType + "-" + uuid.NewString()
	deliveries, err := ch.ConsumeWithContext(ctx, names.Queue, tag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", names.Queue, err)
	}
	return deliveries, nil
}

// handle dispatches one delivery and settles it. A returned error means
// the channel is unusable; the delivery stays unacked and the broker
// redelivers it once the channel closes.
func (t *Transport) handle(ctx context.Context, ch channelPublisher, names common.EventMeta, dv amqp.Delivery, d transport.Dispatcher, logger *slog.Logger) error {
	// the queue decides the type; the property is only advisory
	msg := transport.Message{
		ID:        dv.MessageId,
		Type:      names.EventType,
		Timestamp: dv.Timestamp,
		Body:      dv.Body,
		Headers:   fromTable(dv.Headers),
	}
	if dv.Type != "" && dv.Type != names.EventType {
		logger.Warn("delivery type does not match queue",
			slog.String("event_id", msg.ID),
			slog.String("delivery_type", dv.Type),
		)
	}

	derr := d.Dispatch(ctx, msg)
	outcome := transport.Classify(derr)

	if outcome != transport.Ack && ctx.Err() != nil {
		// shutting down mid-message: leave it unacked for redelivery
		return ctx.Err()
	}

	switch outcome {
	case transport.Ack:
		if err := dv.Ack(false); err != nil {
			return fmt.Errorf("ack: %w", err)
		}
		return nil

	case transport.Poison:
		logger.Warn("poison message, dead-lettering", slog.String("event_id", msg.ID), slog.Any("error", derr))
		if t.cfg.retryEnabled() {
			// primary dead-letters into the retry stage, so go around it
			return t.deadLetter(ctx, ch, names, dv)
		}
		return t.reject(names, dv)

	default:
		deaths := deathCount(dv, names.Queue)
		if t.cfg.retryEnabled() && deaths < t.cfg.RetryAttempts {
			logger.Warn("handler failed, scheduling retry",
				slog.String("event_id", msg.ID),
				slog.Int("attempt", deaths+1),
				slog.Any("error", derr),
			)
			if err := dv.Nack(false, false); err != nil {
				return fmt.Errorf("nack: %w", err)
			}
			return nil
		}
		logger.Error("handler failed, dead-lettering", slog.String("event_id", msg.ID), slog.Any("error", derr))
		if t.cfg.retryEnabled() {
			return t.deadLetter(ctx, ch, names, dv)
		}
		return t.reject(names, dv)
	}
}

// reject nacks without requeue; the queue's dead-letter exchange takes it.
func (t *Transport) reject(names common.EventMeta, dv amqp.Delivery) error {
	if err := dv.Nack(false, false); err != nil {
		return fmt.Errorf("nack: %w", err)
	}
	t.metrics.RecordDeadLetter(names.EventType, Name)
	return nil
}

// deadLetter copies dv to the dead-letter exchange, then acks it.
func (t *Transport) deadLetter(ctx context.Context, ch channelPublisher, names common.EventMeta, dv amqp.Delivery) error {
	pub := amqp.Publishing{
		ContentType:   dv.ContentType,
		DeliveryMode:  amqp.Persistent,
		MessageId:     dv.MessageId,
		CorrelationId: dv.CorrelationId,
		Type:          dv.Type,
		Timestamp:     dv.Timestamp,
		Headers:       dv.Headers,
		Body:          dv.Body,
	}
	if pub.ContentType == "" {
		pub.ContentType = contentTypeJSON
	}
	if err := ch.PublishWithContext(ctx, names.DeadLetterExchange, names.RoutingKey, false, false, pub); err != nil {
		return fmt.Errorf("publish to %s: %w", names.DeadLetterExchange, err)
	}
	if err := dv.Ack(false); err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	t.metrics.RecordDeadLetter(names.EventType, Name)
	return nil
}

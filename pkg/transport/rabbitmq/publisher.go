package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/roboricindustries/raycon-bus/pkg/transport"
)

var errNacked = errors.New("rabbitmq: broker did not confirm publish")

// Publish sends msg to the exchange with the event type as routing key.
// With confirms on it returns only after the broker acknowledged it.
func (t *Transport) Publish(ctx context.Context, msg transport.Message) error {
	names := t.cfg.names(msg.Type)

	ch, pool, err := t.mgr.borrow(ctx)
	if err != nil {
		return err
	}
	defer pool.put(ch)

	if err := t.mgr.EnsureTopology(ch, names); err != nil {
		return err
	}

	pub := publishing(msg)
	// pooled channels are already in confirm mode when confirms are on
	if !t.cfg.PublisherConfirms {
		if err := ch.PublishWithContext(ctx, names.Exchange, names.RoutingKey, false, false, pub); err != nil {
			return fmt.Errorf("publish %s: %w", msg.Type, err)
		}
		return nil
	}

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, names.Exchange, names.RoutingKey, false, false, pub)
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm %s: %w", msg.Type, err)
	}
	if !acked {
		return errNacked
	}
	return nil
}

func publishing(msg transport.Message) amqp.Publishing {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return amqp.Publishing{
		ContentType:   contentTypeJSON,
		DeliveryMode:  amqp.Persistent,
		MessageId:     msg.ID,
		CorrelationId: msg.Headers[transport.HeaderCorrelation],
		Type:          msg.Type,
		Timestamp:     ts,
		Headers:       toTable(msg.Headers),
		Body:          msg.Body,
	}
}

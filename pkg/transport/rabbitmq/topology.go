package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
)

// declarer is the subset of *amqp.Channel used to build topology.
type declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

func (c Config) names(eventType string) common.EventMeta {
	return common.NamesFor(eventType, c.Exchange, c.DeadLetterSuffix, c.RetrySuffix)
}

// declareTopology declares the queue family of one event type. Every call
// is idempotent on the broker side.
//
//	X --E--> E_queue --rejected--> X_dlq --E--> E_queue_dlq
//
// With retries enabled the primary queue dead-letters into the retry stage
// instead, and the consumer moves exhausted messages to X_dlq itself:
//
//	E_queue --rejected--> X_retry --E--> E_queue_retry --ttl--> X
func declareTopology(ch declarer, cfg Config, n common.EventMeta) error {
	durable := cfg.Durable

	if err := ch.ExchangeDeclare(n.Exchange, amqp.ExchangeDirect, durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", n.Exchange, err)
	}
	if err := ch.ExchangeDeclare(n.DeadLetterExchange, amqp.ExchangeDirect, durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter exchange %s: %w", n.DeadLetterExchange, err)
	}
	if _, err := ch.QueueDeclare(n.DeadLetterQueue, durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter queue %s: %w", n.DeadLetterQueue, err)
	}
	if err := ch.QueueBind(n.DeadLetterQueue, n.RoutingKey, n.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind dead-letter queue %s: %w", n.DeadLetterQueue, err)
	}

	mainArgs := amqp.Table{"x-dead-letter-exchange": n.DeadLetterExchange}
	if cfg.retryEnabled() {
		mainArgs["x-dead-letter-exchange"] = n.RetryExchange

		if err := ch.ExchangeDeclare(n.RetryExchange, amqp.ExchangeDirect, durable, false, false, false, nil); err != nil {
			return fmt.Errorf("declare retry exchange %s: %w", n.RetryExchange, err)
		}
		retryArgs := amqp.Table{
			"x-message-ttl":          cfg.RetryTTL.Milliseconds(),
			"x-dead-letter-exchange": n.Exchange,
		}
		if _, err := ch.QueueDeclare(n.RetryQueue, durable, false, false, false, retryArgs); err != nil {
			return fmt.Errorf("declare retry queue %s: %w", n.RetryQueue, err)
		}
		if err := ch.QueueBind(n.RetryQueue, n.RoutingKey, n.RetryExchange, false, nil); err != nil {
			return fmt.Errorf("bind retry queue %s: %w", n.RetryQueue, err)
		}
	}

	if _, err := ch.QueueDeclare(n.Queue, durable, false, false, false, mainArgs); err != nil {
		return fmt.Errorf("declare queue %s: %w", n.Queue, err)
	}
	if err := ch.QueueBind(n.Queue, n.RoutingKey, n.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", n.Queue, err)
	}
	return nil
}

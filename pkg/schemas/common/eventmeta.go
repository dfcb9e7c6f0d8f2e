package common

// Default suffixes appended to the primary queue (or topic) name.
const (
	DefaultDeadLetterSuffix = "_dlq"
	DefaultRetrySuffix      = "_retry"
	QueueSuffix             = "_queue"
)

// EventMeta is the topology family owned by a single event type.
// No two event types share any of these names.
type EventMeta struct {
	EventType string // e.g. "SendEmailNotificationEvent"
	Exchange  string // shared direct exchange
	// RoutingKey used to bind the primary and dead-letter queues.
	RoutingKey string

	Queue              string // "{EventType}_queue"
	DeadLetterExchange string
	DeadLetterQueue    string // "{EventType}_queue{DeadLetterSuffix}"
	RetryExchange      string
	RetryQueue         string

	Topic           string // log broker topic, "{EventType}"
	DeadLetterTopic string
}

// NamesFor derives the topology of eventType deterministically.
// Empty suffixes fall back to the defaults.
func NamesFor(eventType, exchange, deadLetterSuffix, retrySuffix string) EventMeta {
	if deadLetterSuffix == "" {
		deadLetterSuffix = DefaultDeadLetterSuffix
	}
	if retrySuffix == "" {
		retrySuffix = DefaultRetrySuffix
	}
	queue := eventType + QueueSuffix
	return EventMeta{
		EventType:          eventType,
		Exchange:           exchange,
		RoutingKey:         eventType,
		Queue:              queue,
		DeadLetterExchange: exchange + deadLetterSuffix,
		DeadLetterQueue:    queue + deadLetterSuffix,
		RetryExchange:      exchange + retrySuffix,
		RetryQueue:         queue + retrySuffix,
		Topic:              eventType,
		DeadLetterTopic:    eventType + deadLetterSuffix,
	}
}

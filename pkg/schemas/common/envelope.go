package common

import (
	"time"

	"github.com/google/uuid"
)

// Event is implemented by every payload carried over the bus.
// EventType must use a value receiver so the zero value of a payload type
// can name its own topology.
type Event interface {
	EventType() string
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

type GenericEnvelope[T any] struct {
	Meta Meta `json:"meta"`
	Data T    `json:"data"`
}

// NewEnvelope wraps payload with a freshly generated event id and the
// current UTC time. Every call yields a distinct id.
func NewEnvelope[T Event](payload T) GenericEnvelope[T] {
	return GenericEnvelope[T]{
		Meta: Meta{
			ID:   uuid.NewString(),
			Type: payload.EventType(),
			Time: time.Now().UTC(),
		},
		Data: payload,
	}
}

// TypeOf returns the event type name of T without needing an instance.
func TypeOf[T Event]() string {
	var zero T
	return zero.EventType()
}

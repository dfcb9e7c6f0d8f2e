// Package transport defines the contract every bus backend implements.
package transport

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPoison marks content that can never be processed (undecodable or
	// rejected by validation). Backends dead-letter it without retrying.
	ErrPoison = errors.New("poison message")
	// ErrHandlerFailed marks a message whose handler set did not complete.
	ErrHandlerFailed = errors.New("handler failed")
	ErrClosed        = errors.New("transport closed")
	ErrNotConnected  = errors.New("broker not connected")
)

// Header keys carried alongside every message.
const (
	HeaderEventType   = "event-type"
	HeaderEventID     = "event-id"
	HeaderTimestamp   = "event-time"
	HeaderCorrelation = "correlation-id"
)

// Message is one serialized event envelope as it crosses a transport.
type Message struct {
	ID        string
	Type      string
	Timestamp time.Time
	Body      []byte
	// Headers carry trace context and correlation data.
	Headers map[string]string
}

// Dispatcher runs the registered handler set for one message.
// A nil return means every handler succeeded.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

type DispatcherFunc func(ctx context.Context, msg Message) error

func (f DispatcherFunc) Dispatch(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Transport moves messages between producers and consumer loops.
type Transport interface {
	// Name is the backend label used in logs and metrics.
	Name() string
	// Publish returns once the broker accepted msg (or the embedded
	// handlers returned).
	Publish(ctx context.Context, msg Message) error
	// Consume runs the consumer loop for eventType until ctx is done.
	// Deliveries are handed to d strictly one at a time.
	Consume(ctx context.Context, eventType string, d Dispatcher) error
	Ping(ctx context.Context) error
	Close() error
}

// Classify maps a dispatch error to the failure path a backend takes.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Ack
	case errors.Is(err, ErrPoison):
		return Poison
	default:
		return Failed
	}
}

type Outcome int

const (
	Ack Outcome = iota
	Failed
	Poison
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Poison:
		return "poison"
	default:
		return "failed"
	}
}

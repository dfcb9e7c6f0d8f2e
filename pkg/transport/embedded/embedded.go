// Package embedded runs handlers in-process on the publisher's goroutine.
// There is no queueing, persistence or redelivery.
package embedded

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/roboricindustries/raycon-bus/pkg/transport"
)

const Name = "embedded"

type Bus struct {
	dispatcher transport.Dispatcher
	logger     *slog.Logger
	closed     atomic.Bool
}

func New(d transport.Dispatcher, logger *slog.Logger) *Bus {
	return &Bus{
		dispatcher: d,
		logger:     logger.With("backend", Name),
	}
}

func (b *Bus) Name() string { return Name }

// Publish dispatches msg synchronously. Handler errors are returned to
// the caller as-is.
func (b *Bus) Publish(ctx context.Context, msg transport.Message) error {
	if b.closed.Load() {
		return transport.ErrClosed
	}
	return b.dispatcher.Dispatch(ctx, msg)
}

// Consume has nothing to pull from and returns immediately.
func (b *Bus) Consume(context.Context, string, transport.Dispatcher) error {
	return nil
}

func (b *Bus) Ping(context.Context) error {
	if b.closed.Load() {
		return transport.ErrClosed
	}
	return nil
}

func (b *Bus) Close() error {
	if !b.closed.Swap(true) {
		b.logger.Info("embedded bus closed")
	}
	return nil
}

package pubsub

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roboricindustries/raycon-bus/pkg/metrics"
	"github.com/roboricindustries/raycon-bus/pkg/transport"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// fakeBroker queues messages per event type and records how each
// delivery was settled, like a broker with a dead-letter queue.
type fakeBroker struct {
	mu           sync.Mutex
	queues       map[string]chan transport.Message
	acked        []string
	deadLettered []string
	published    []transport.Message
	publishErr   error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{queues: map[string]chan transport.Message{}}
}

func (f *fakeBroker) Name() string { return "fake" }

func (f *fakeBroker) queue(eventType string) chan transport.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[eventType]
	if !ok {
		q = make(chan transport.Message, 256)
		f.queues[eventType] = q
	}
	return q
}

func (f *fakeBroker) Publish(_ context.Context, msg transport.Message) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	f.published = append(f.published, msg)
	f.mu.Unlock()
	f.queue(msg.Type) <- msg
	return nil
}

func (f *fakeBroker) Consume(ctx context.Context, eventType string, d transport.Dispatcher) error {
	q := f.queue(eventType)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-q:
			err := d.Dispatch(ctx, msg)
			f.mu.Lock()
			if err == nil {
				f.acked = append(f.acked, msg.ID)
			} else {
				f.deadLettered = append(f.deadLettered, msg.ID)
			}
			f.mu.Unlock()
		}
	}
}

func (f *fakeBroker) Ping(context.Context) error { return nil }
func (f *fakeBroker) Close() error               { return nil }

func (f *fakeBroker) settled() (acked, dead []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...), append([]string(nil), f.deadLettered...)
}

func newEmbeddedBus(t *testing.T, r *Registry, opts ...Option) *Bus {
	t.Helper()
	opts = append([]Option{WithLogger(discard()), WithMetrics(metrics.NewRegistry())}, opts...)
	b, err := New(context.Background(), Config{Backend: "embedded", ValidationPolicy: ValidationLog}, r, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func newBrokerBus(t *testing.T, r *Registry, broker *fakeBroker) *Bus {
	t.Helper()
	b, err := New(context.Background(), Config{}, r,
		WithLogger(discard()),
		WithTransport(func(transport.Dispatcher) transport.Transport { return broker }),
	)
	require.NoError(t, err)
	return b
}

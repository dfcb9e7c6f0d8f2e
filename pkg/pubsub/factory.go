package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roboricindustries/raycon-bus/pkg/metrics"
	"github.com/roboricindustries/raycon-bus/pkg/transport"
	"github.com/roboricindustries/raycon-bus/pkg/transport/embedded"
	"github.com/roboricindustries/raycon-bus/pkg/transport/kafka"
	"github.com/roboricindustries/raycon-bus/pkg/transport/rabbitmq"
)

// connector is implemented by broker backends that can dial eagerly.
type connector interface {
	Connect(ctx context.Context) error
}

// newTransport builds the configured backend. Broker backends connect
// lazily unless FallbackToEmbedded asks for a start-up connection check.
func newTransport(ctx context.Context, cfg Config, d transport.Dispatcher, logger *slog.Logger, m *metrics.Registry) (transport.Transport, error) {
	var (
		t   transport.Transport
		err error
	)
	switch cfg.backend() {
	case embedded.Name:
		return embedded.New(d, logger), nil
	case rabbitmq.Name:
		t, err = rabbitmq.New(cfg.RabbitMQ, logger, m)
	case kafka.Name:
		t, err = kafka.New(cfg.Kafka, logger, m)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if !cfg.FallbackToEmbedded {
		return t, nil
	}
	return withFallback(ctx, cfg, t, d, logger)
}

// withFallback swaps t for the embedded bus when its broker is unreachable.
func withFallback(ctx context.Context, cfg Config, t transport.Transport, d transport.Dispatcher, logger *slog.Logger) (transport.Transport, error) {
	c, ok := t.(connector)
	if !ok {
		return t, nil
	}
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	err := c.Connect(ctx)
	if err == nil {
		return t, nil
	}

	logger.Warn("broker unreachable, falling back to embedded bus",
		slog.String("backend", t.Name()),
		slog.Any("error", err),
	)
	_ = t.Close()
	return embedded.New(d, logger), nil
}

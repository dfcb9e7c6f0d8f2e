// Package rabbitmq is the AMQP 0-9-1 backend: one durable direct exchange,
// a primary and a dead-letter queue per event type, manual acks.
package rabbitmq

import (
	"context"
	"log/slog"
	"time"

	"github.com/roboricindustries/raycon-bus/pkg/metrics"
	"github.com/roboricindustries/raycon-bus/pkg/transport"
)

const (
	Name = "rabbitmq"

	defaultConnTimeout = 30 * time.Second
	contentTypeJSON    = "application/json"
)

type Transport struct {
	cfg     Config
	mgr     *Manager
	logger  *slog.Logger
	metrics *metrics.Registry
}

var _ transport.Transport = (*Transport)(nil)

func New(cfg Config, logger *slog.Logger, m *metrics.Registry) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With("backend", Name)
	return &Transport{
		cfg:     cfg,
		mgr:     NewManager(cfg, logger, m),
		logger:  logger,
		metrics: m,
	}, nil
}

func (t *Transport) Name() string { return Name }

// Connect dials eagerly so start-up can fail fast.
func (t *Transport) Connect(ctx context.Context) error {
	_, err := t.mgr.Connection(ctx)
	return err
}

func (t *Transport) Ping(ctx context.Context) error { return t.mgr.Ping(ctx) }

func (t *Transport) Close() error { return t.mgr.Close() }

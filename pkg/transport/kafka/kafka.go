// Package kafka is the partitioned log backend built on sarama: topic per
// event type, event id as record key, consumer groups with manual commit.
package kafka

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roboricindustries/raycon-bus/pkg/metrics"
	"github.com/roboricindustries/raycon-bus/pkg/transport"
)

const Name = "kafka"

type Transport struct {
	cfg     Config
	mgr     *Manager
	logger  *slog.Logger
	metrics *metrics.Registry

	// one lock per event type keeps dispatch sequential across partitions
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

var _ transport.Transport = (*Transport)(nil)

func New(cfg Config, logger *slog.Logger, m *metrics.Registry) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sc, err := cfg.saramaConfig()
	if err != nil {
		return nil, err
	}
	logger = logger.With("backend", Name)
	return &Transport{
		cfg:     cfg,
		mgr:     NewManager(cfg, sc, logger, m),
		logger:  logger,
		metrics: m,
		locks:   map[string]*sync.Mutex{},
	}, nil
}

func (t *Transport) Name() string { return Name }

// Connect opens the shared client and producer eagerly.
func (t *Transport) Connect(context.Context) error {
	_, err := t.mgr.Producer()
	return err
}

func (t *Transport) Ping(context.Context) error { return t.mgr.Ping() }

func (t *Transport) Close() error { return t.mgr.Close() }

func (t *Transport) typeLock(eventType string) *sync.Mutex {
	t.locksMu.Lock()
	defer t.locksMu.Unlock()
	mu, ok := t.locks[eventType]
	if !ok {
		mu = &sync.Mutex{}
		t.locks[eventType] = mu
	}
	return mu
}

package kafka

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"github.com/roboricindustries/raycon-bus/pkg/metrics"
	"github.com/roboricindustries/raycon-bus/pkg/transport"
)

// Manager owns the shared sarama client and the idempotent producer. Both
// are created on first use under mu, so concurrent publishers never race
// to open a second connection.
type Manager struct {
	cfg     Config
	sc      *sarama.Config
	logger  *slog.Logger
	metrics *metrics.Registry

	newClient   func(addrs []string, conf *sarama.Config) (sarama.Client, error)
	newProducer func(client sarama.Client) (sarama.SyncProducer, error)
	newGroup    func(addrs []string, groupID string, conf *sarama.Config) (sarama.ConsumerGroup, error)

	mu       sync.Mutex
	client   sarama.Client
	producer sarama.SyncProducer
	groups   []sarama.ConsumerGroup
	closed   bool
}

func NewManager(cfg Config, sc *sarama.Config, logger *slog.Logger, m *metrics.Registry) *Manager {
	return &Manager{
		cfg:         cfg,
		sc:          sc,
		logger:      logger.With("op", "kafka.Manager"),
		metrics:     m,
		newClient:   sarama.NewClient,
		newProducer: sarama.NewSyncProducerFromClient,
		newGroup:    sarama.NewConsumerGroup,
	}
}

func (m *Manager) clientLocked() (sarama.Client, error) {
	if m.closed {
		return nil, transport.ErrClosed
	}
	if m.client != nil && !m.client.Closed() {
		return m.client, nil
	}

	m.logger.Info("connecting to kafka", slog.Any("brokers", m.cfg.Brokers))
	client, err := m.newClient(m.cfg.Brokers, m.sc)
	m.metrics.RecordReconnect(Name, err)
	if err != nil {
		m.metrics.SetConnected(Name, false)
		return nil, fmt.Errorf("%w: %w", transport.ErrNotConnected, err)
	}
	m.client = client
	m.producer = nil
	m.metrics.SetConnected(Name, true)
	return client, nil
}

// Producer returns the shared idempotent producer.
func (m *Manager) Producer() (sarama.SyncProducer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.producer != nil && !m.closed {
		return m.producer, nil
	}
	client, err := m.clientLocked()
	if err != nil {
		return nil, err
	}
	p, err := m.newProducer(client)
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}
	m.producer = p
	return p, nil
}

// ConsumerGroup joins groupID on a dedicated client; sarama groups may
// reuse a client but must not share it. The group stays tracked until
// ReleaseGroup or Close.
func (m *Manager) ConsumerGroup(groupID string) (sarama.ConsumerGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, transport.ErrClosed
	}
	g, err := m.newGroup(m.cfg.Brokers, groupID, m.sc)
	if err != nil {
		return nil, fmt.Errorf("%w: join group %s: %w", transport.ErrNotConnected, groupID, err)
	}
	m.groups = append(m.groups, g)
	return g, nil
}

// ReleaseGroup closes g unless Close already did.
func (m *Manager) ReleaseGroup(g sarama.ConsumerGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, tracked := range m.groups {
		if tracked == g {
			m.groups = append(m.groups[:i], m.groups[i+1:]...)
			return g.Close()
		}
	}
	return nil
}

// Ping refreshes cluster metadata over the shared client.
func (m *Manager) Ping() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, err := m.clientLocked()
	if err != nil {
		return err
	}
	if err := client.RefreshMetadata(); err != nil {
		m.metrics.SetConnected(Name, false)
		return fmt.Errorf("%w: %w", transport.ErrNotConnected, err)
	}
	m.metrics.SetConnected(Name, true)
	return nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for _, g := range m.groups {
		errs = append(errs, g.Close())
	}
	m.groups = nil
	if m.producer != nil {
		errs = append(errs, m.producer.Close())
	}
	if m.client != nil && !m.client.Closed() {
		errs = append(errs, m.client.Close())
	}
	m.metrics.SetConnected(Name, false)
	return errors.Join(errs...)
}

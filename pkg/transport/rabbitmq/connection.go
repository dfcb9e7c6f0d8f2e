package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/roboricindustries/raycon-bus/pkg/metrics"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
	"github.com/roboricindustries/raycon-bus/pkg/transport"
)

// Manager owns the single AMQP connection shared by the publisher and all
// consumer loops. The connection is dialled lazily and re-dialled on first
// use after it drops; concurrent callers wait for the same attempt.
type Manager struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Registry

	mu     sync.Mutex
	conn   *amqp.Connection
	pool   *channelPool
	closed bool

	topoMu   sync.Mutex
	declared map[string]bool
}

func NewManager(cfg Config, logger *slog.Logger, m *metrics.Registry) *Manager {
	return &Manager{
		cfg:      cfg,
		logger:   logger.With("op", "rabbitmq.Manager"),
		metrics:  m,
		declared: map[string]bool{},
	}
}

// Connection returns the open connection, dialling if needed.
func (m *Manager) Connection(ctx context.Context) (*amqp.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked(ctx)
}

func (m *Manager) connectLocked(ctx context.Context) (*amqp.Connection, error) {
	if m.closed {
		return nil, transport.ErrClosed
	}
	if m.conn != nil && !m.conn.IsClosed() {
		return m.conn, nil
	}
	if m.pool != nil {
		m.pool.close()
		m.pool = nil
	}

	m.logger.Info("connecting to rabbitmq", slog.String("url", m.cfg.RedactedURL()))
	conn, err := m.dial(ctx)
	m.metrics.RecordReconnect(Name, err)
	if err != nil {
		m.logger.Error("dial failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", transport.ErrNotConnected, err)
	}

	m.conn = conn
	m.pool = newChannelPool(conn, m.cfg.PublishPoolSize, m.cfg.PoolRetryDelay, m.cfg.PublisherConfirms)
	m.resetTopology()
	m.metrics.SetConnected(Name, true)

	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-closeCh; ok && err != nil {
			m.logger.Warn("rabbitmq connection lost", slog.Any("error", err))
		}
		m.metrics.SetConnected(Name, false)
	}()

	m.logger.Info("rabbitmq connected")
	return conn, nil
}

func (m *Manager) dial(ctx context.Context) (*amqp.Connection, error) {
	timeout := orDuration(m.cfg.ConnTimeout, defaultConnTimeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if m.cfg.Dialer != nil {
		return m.cfg.Dialer(ctx, m.cfg.URL)
	}

	// amqp.DialConfig is not context aware; the dial timeout bounds it.
	type result struct {
		conn *amqp.Connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := amqp.DialConfig(m.cfg.URL, amqp.Config{
			Dial:       amqp.DefaultDial(timeout),
			Properties: amqp.Table{"connection_name": m.cfg.ConnectionName},
		})
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Channel opens a dedicated channel, used by consumer loops.
func (m *Manager) Channel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := m.Connection(ctx)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// borrow takes a publish channel from the pool of the current connection.
func (m *Manager) borrow(ctx context.Context) (*amqp.Channel, *channelPool, error) {
	m.mu.Lock()
	if _, err := m.connectLocked(ctx); err != nil {
		m.mu.Unlock()
		return nil, nil, err
	}
	pool := m.pool
	m.mu.Unlock()

	ch, err := pool.get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("borrow channel: %w", err)
	}
	return ch, pool, nil
}

// EnsureTopology declares the queue family of names once per connection.
func (m *Manager) EnsureTopology(ch declarer, names common.EventMeta) error {
	m.topoMu.Lock()
	defer m.topoMu.Unlock()
	if m.declared[names.EventType] {
		return nil
	}
	if err := declareTopology(ch, m.cfg, names); err != nil {
		return err
	}
	m.declared[names.EventType] = true
	return nil
}

// DeclareTopology declares the queue family of names unconditionally and
// marks it declared for publishers on this connection.
func (m *Manager) DeclareTopology(ch declarer, names common.EventMeta) error {
	m.topoMu.Lock()
	defer m.topoMu.Unlock()
	delete(m.declared, names.EventType)
	if err := declareTopology(ch, m.cfg, names); err != nil {
		return err
	}
	m.declared[names.EventType] = true
	return nil
}

func (m *Manager) resetTopology() {
	m.topoMu.Lock()
	m.declared = map[string]bool{}
	m.topoMu.Unlock()
}

// Ping reports whether the connection is currently open. It never dials.
func (m *Manager) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return transport.ErrClosed
	}
	if m.conn == nil || m.conn.IsClosed() {
		return transport.ErrNotConnected
	}
	return nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.pool != nil {
		m.pool.close()
	}
	if m.conn != nil && !m.conn.IsClosed() {
		return m.conn.Close()
	}
	return nil
}

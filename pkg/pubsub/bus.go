package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roboricindustries/raycon-bus/pkg/metrics"
	"github.com/roboricindustries/raycon-bus/pkg/tracing"
	"github.com/roboricindustries/raycon-bus/pkg/transport"
)

// Bus ties the registry to one backend: it owns the publisher and runs one
// consumer loop per subscribed event type.
type Bus struct {
	registry   *Registry
	transport  transport.Transport
	dispatcher *dispatcher
	publisher  *Publisher
	logger     *slog.Logger
	running    atomic.Bool
}

type options struct {
	logger    *slog.Logger
	metrics   *metrics.Registry
	tracer    *tracing.Tracer
	transport func(transport.Dispatcher) transport.Transport
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

func WithMetrics(m *metrics.Registry) Option { return func(o *options) { o.metrics = m } }

func WithTracer(t *tracing.Tracer) Option { return func(o *options) { o.tracer = t } }

// WithTransport bypasses the backend factory. build receives the bus
// dispatcher.
func WithTransport(build func(transport.Dispatcher) transport.Transport) Option {
	return func(o *options) { o.transport = build }
}

func New(ctx context.Context, cfg Config, registry *Registry, opts ...Option) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = NewRegistry()
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = tracing.Noop()
	}
	logger := o.logger.With("component", "bus")

	d := &dispatcher{
		registry: registry,
		policy:   cfg.ValidationPolicy,
		tracer:   o.tracer,
		metrics:  o.metrics,
		logger:   logger,
	}

	var t transport.Transport
	if o.transport != nil {
		t = o.transport(d)
	} else {
		var err error
		if t, err = newTransport(ctx, cfg, d, o.logger, o.metrics); err != nil {
			return nil, err
		}
	}
	d.backend = t.Name()

	logger.Info("bus configured", slog.String("config", cfg.String()), slog.String("backend", t.Name()))

	return &Bus{
		registry:   registry,
		transport:  t,
		dispatcher: d,
		publisher: &Publisher{
			transport: t,
			producer:  cfg.Producer,
			tracer:    o.tracer,
			metrics:   o.metrics,
			logger:    logger,
		},
		logger: logger,
	}, nil
}

func (b *Bus) Publisher() *Publisher { return b.publisher }

func (b *Bus) Registry() *Registry { return b.registry }

// Backend names the transport actually in use, which differs from the
// configured one after a fallback.
func (b *Bus) Backend() string { return b.transport.Name() }

// Run freezes the registry and supervises one consumer loop per event
// type until ctx is done. A loop that fails for good cancels the rest.
func (b *Bus) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer b.running.Store(false)
	b.registry.freeze()

	g, gctx := errgroup.WithContext(ctx)
	for _, eventType := range b.registry.EventTypes() {
		g.Go(func() error {
			b.logger.Info("starting consumer", slog.String("event_type", eventType))
			if err := b.transport.Consume(gctx, eventType, b.dispatcher); err != nil {
				b.logger.Error("consumer stopped", slog.String("event_type", eventType), slog.Any("error", err))
				return fmt.Errorf("consume %s: %w", eventType, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	b.logger.Info("bus stopped")
	return err
}

func (b *Bus) Ping(ctx context.Context) error { return b.transport.Ping(ctx) }

func (b *Bus) Close() error {
	b.publisher.closed.Store(true)
	return b.transport.Close()
}

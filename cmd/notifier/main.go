// Command notifier consumes account, contact and conversation events and
// delivers the resulting notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/sync/errgroup"

	"github.com/roboricindustries/raycon-bus/pkg/metrics"
	"github.com/roboricindustries/raycon-bus/pkg/notify"
	"github.com/roboricindustries/raycon-bus/pkg/pubsub"
	"github.com/roboricindustries/raycon-bus/pkg/tracing"
)

type config struct {
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`

	Metrics metrics.ServerConfig
	Tracing tracing.Config
	Notify  notify.Config
}

func main() {
	if err := run(); err != nil {
		slog.Error("notifier failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	busCfg, err := pubsub.LoadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("notifier starting", slog.String("bus", busCfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("tracing shutdown failed", slog.Any("error", err))
		}
	}()

	registry := metrics.NewRegistry()
	subs := pubsub.NewRegistry()

	bus, err := pubsub.New(ctx, busCfg, subs,
		pubsub.WithLogger(logger),
		pubsub.WithMetrics(registry),
		pubsub.WithTracer(tracer),
	)
	if err != nil {
		return fmt.Errorf("create bus: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Error("bus close failed", slog.Any("error", err))
		}
	}()

	senders := notify.LogSenders{Logger: logger.With("component", "senders")}
	if err := notify.Register(subs, notify.Deps{
		Config:    cfg.Notify,
		Email:     senders,
		Sms:       senders,
		Push:      senders,
		Publisher: bus.Publisher(),
		Logger:    logger,
	}); err != nil {
		return fmt.Errorf("register handlers: %w", err)
	}
	logger.Info("handlers registered",
		slog.String("backend", bus.Backend()),
		slog.Any("event_types", subs.EventTypes()),
	)

	server := metrics.NewServer(cfg.Metrics, registry, bus.Ping, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bus.Run(gctx) })
	g.Go(func() error { return server.Start(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("notifier stopped")
	return nil
}

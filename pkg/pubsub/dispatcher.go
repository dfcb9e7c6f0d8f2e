package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roboricindustries/raycon-bus/pkg/metrics"
	"github.com/roboricindustries/raycon-bus/pkg/tracing"
	"github.com/roboricindustries/raycon-bus/pkg/transport"
	"github.com/roboricindustries/raycon-bus/pkg/validation"
)

// dispatcher turns one transport message into handler calls: decode once,
// validate, then run every handler for the type in registration order.
type dispatcher struct {
	registry *Registry
	policy   ValidationPolicy
	backend  string
	tracer   *tracing.Tracer
	metrics  *metrics.Registry
	logger   *slog.Logger
}

var _ transport.Dispatcher = (*dispatcher)(nil)

func (d *dispatcher) Dispatch(ctx context.Context, msg transport.Message) (err error) {
	if !d.registry.Frozen() {
		d.registry.freeze()
	}

	start := time.Now()
	ctx = d.tracer.Extract(ctx, msg.Headers)
	ctx, span := d.tracer.StartDispatch(ctx, d.backend, msg.Type, msg.ID)
	defer func() {
		tracing.RecordError(span, err)
		span.End()
		d.metrics.RecordDispatch(msg.Type, d.backend, outcome(err), time.Since(start))
	}()

	logger := d.logger.With(slog.String("event_type", msg.Type), slog.String("event_id", msg.ID))

	sub, ok := d.registry.lookup(msg.Type)
	if !ok || len(sub.handlers) == 0 {
		logger.Debug("no handlers subscribed, dropping")
		return nil
	}

	dec, err := sub.decode(msg.Body)
	if err != nil {
		logger.Error("undecodable payload", slog.Any("error", err))
		return fmt.Errorf("%w: decode %s: %w", transport.ErrPoison, msg.Type, err)
	}

	if res := validation.Validate(dec.payload); !res.IsValid() {
		d.metrics.RecordValidationFailure(msg.Type)
		if d.policy == ValidationReject {
			logger.Error("payload rejected by validation", slog.Any("issues", res.Errors()))
			return fmt.Errorf("%w: %w", transport.ErrPoison, res.Err())
		}
		logger.Warn("payload failed validation", slog.Any("issues", res.Errors()))
	}

	for _, h := range sub.handlers {
		if herr := d.invoke(ctx, msg.Type, h, dec.env); herr != nil {
			logger.Error("handler failed", slog.String("handler", h.name), slog.Any("error", herr))
			return fmt.Errorf("%w: %s: %w", transport.ErrHandlerFailed, h.name, herr)
		}
	}

	logger.Debug("event handled", slog.Int("handlers", len(sub.handlers)), slog.Duration("took", time.Since(start)))
	return nil
}

// invoke runs one handler from a fresh factory call, turning a panic into
// an error so the consumer loop survives.
func (d *dispatcher) invoke(ctx context.Context, eventType string, h handlerSlot, env any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.RecordHandlerPanic(eventType)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.invoke(ctx, env)
}

func outcome(err error) string {
	switch transport.Classify(err) {
	case transport.Ack:
		return metrics.OutcomeAck
	case transport.Poison:
		return metrics.OutcomePoison
	default:
		return metrics.OutcomeFailed
	}
}

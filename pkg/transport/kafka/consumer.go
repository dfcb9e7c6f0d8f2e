package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/roboricindustries/raycon-bus/pkg/transport"
)

// Consume joins the event type's consumer group and processes records
// until ctx is done. A failed record is not committed: the claim ends, the
// session rejoins after RebalanceBackoff and resumes from the committed
// offset, so the same record is delivered again.
func (t *Transport) Consume(ctx context.Context, eventType string, d transport.Dispatcher) error {
	groupID := t.cfg.groupID(eventType)
	logger := t.logger.With("event_type", eventType, "group", groupID)
	backoff := orDuration(t.cfg.RebalanceBackoff, 2*time.Second)

	var group sarama.ConsumerGroup
	for {
		g, err := t.mgr.ConsumerGroup(groupID)
		if err == nil {
			group = g
			break
		}
		if errors.Is(err, transport.ErrClosed) {
			return err
		}
		logger.Error("join consumer group failed", slog.Any("error", err), slog.Duration("retry_in", backoff))
		if !sleepCtx(ctx, backoff) {
			return nil
		}
	}
	defer func() {
		if err := t.mgr.ReleaseGroup(group); err != nil {
			logger.Warn("close consumer group", slog.Any("error", err))
		}
	}()

	go func() {
		for err := range group.Errors() {
			logger.Error("consumer group error", slog.Any("error", err))
		}
	}()

	h := &groupHandler{
		t:         t,
		eventType: eventType,
		d:         d,
		mu:        t.typeLock(eventType),
		logger:    logger,
	}

	t.metrics.ConsumerStarted(Name)
	defer t.metrics.ConsumerStopped(Name)
	logger.Info("consumer started")

	for {
		err := group.Consume(ctx, []string{eventType}, h)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return fmt.Errorf("%s: %w", groupID, transport.ErrClosed)
		}
		wait := time.Duration(0)
		if err != nil {
			logger.Error("consume session ended", slog.Any("error", err))
			wait = backoff
		}
		if h.failed.Swap(false) {
			wait = backoff
		}
		if wait > 0 && !sleepCtx(ctx, wait) {
			return nil
		}
	}
}

var errRedeliver = errors.New("record left uncommitted for redelivery")

type groupHandler struct {
	t         *Transport
	eventType string
	d         transport.Dispatcher
	mu        *sync.Mutex
	logger    *slog.Logger

	failed atomic.Bool
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case m, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(sess, m); err != nil {
				if errors.Is(err, errRedeliver) {
					h.failed.Store(true)
					return nil
				}
				return err
			}
		case <-sess.Context().Done():
			return nil
		}
	}
}

// process runs the handler set for one record and commits on success.
// Records of one event type never overlap, even across partitions.
func (h *groupHandler) process(sess sarama.ConsumerGroupSession, m *sarama.ConsumerMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := sess.Context()
	msg := message(h.eventType, m)
	logger := h.logger.With(
		slog.String("event_id", msg.ID),
		slog.Int("partition", int(m.Partition)),
		slog.Int64("offset", m.Offset),
	)

	derr := h.d.Dispatch(ctx, msg)
	outcome := transport.Classify(derr)
	if outcome != transport.Ack && ctx.Err() != nil {
		return errRedeliver
	}

	switch outcome {
	case transport.Ack:
	case transport.Poison:
		logger.Warn("poison record, copying to dead-letter topic", slog.Any("error", derr))
		if err := h.deadLetter(msg); err != nil {
			logger.Error("dead-letter copy failed", slog.Any("error", err))
			return errRedeliver
		}
		h.t.metrics.RecordDeadLetter(h.eventType, Name)
	default:
		logger.Error("handler failed, offset not advanced", slog.Any("error", derr))
		return errRedeliver
	}

	sess.MarkMessage(m, "")
	sess.Commit()
	return nil
}

func (h *groupHandler) deadLetter(msg transport.Message) error {
	p, err := h.t.mgr.Producer()
	if err != nil {
		return err
	}
	_, _, err = p.SendMessage(record(h.t.cfg.deadLetterTopic(h.eventType), msg))
	return err
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

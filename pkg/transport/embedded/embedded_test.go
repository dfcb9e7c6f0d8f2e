package embedded

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboricindustries/raycon-bus/pkg/transport"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPublishRunsOnCallerGoroutine(t *testing.T) {
	var calls []string
	b := New(transport.DispatcherFunc(func(_ context.Context, m transport.Message) error {
		calls = append(calls, m.ID)
		return nil
	}), discard())

	require.NoError(t, b.Publish(context.Background(), transport.Message{ID: "1", Type: "T"}))
	require.NoError(t, b.Publish(context.Background(), transport.Message{ID: "2", Type: "T"}))
	// appended without synchronisation: only safe because dispatch is synchronous
	assert.Equal(t, []string{"1", "2"}, calls)
}

func TestPublishPropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	b := New(transport.DispatcherFunc(func(context.Context, transport.Message) error {
		return boom
	}), discard())

	err := b.Publish(context.Background(), transport.Message{ID: "1"})
	assert.ErrorIs(t, err, boom)
}

func TestConsumeReturnsImmediately(t *testing.T) {
	b := New(transport.DispatcherFunc(func(context.Context, transport.Message) error { return nil }), discard())
	assert.NoError(t, b.Consume(context.Background(), "T", nil))
	assert.NoError(t, b.Ping(context.Background()))
}

func TestClosed(t *testing.T) {
	b := New(transport.DispatcherFunc(func(context.Context, transport.Message) error { return nil }), discard())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Publish(context.Background(), transport.Message{}), transport.ErrClosed)
	assert.ErrorIs(t, b.Ping(context.Background()), transport.ErrClosed)
}

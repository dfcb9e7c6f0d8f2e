package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, Ack},
		{"poison", ErrPoison, Poison},
		{"wrapped poison", fmt.Errorf("decode: %w", ErrPoison), Poison},
		{"handler", fmt.Errorf("x: %w", ErrHandlerFailed), Failed},
		{"other", errors.New("io"), Failed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
	assert.Equal(t, "poison", Poison.String())
}

func TestDispatcherFunc(t *testing.T) {
	var got Message
	d := DispatcherFunc(func(_ context.Context, m Message) error {
		got = m
		return nil
	})
	assert.NoError(t, d.Dispatch(context.Background(), Message{ID: "1"}))
	assert.Equal(t, "1", got.ID)
}

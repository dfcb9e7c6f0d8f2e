package pubsub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/roboricindustries/raycon-bus/pkg/jsoncodec"
	"github.com/roboricindustries/raycon-bus/pkg/schemas/common"
)

// Handler processes one event. It may see the same event id more than
// once on broker backends and must tolerate that.
type Handler[T common.Event] interface {
	Handle(ctx context.Context, env common.GenericEnvelope[T]) error
}

type HandlerFunc[T common.Event] func(ctx context.Context, env common.GenericEnvelope[T]) error

func (f HandlerFunc[T]) Handle(ctx context.Context, env common.GenericEnvelope[T]) error {
	return f(ctx, env)
}

// Registry maps event types to their ordered handler factories. It is
// filled at start-up and frozen once the bus runs or first dispatches.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	order  []string
	frozen atomic.Bool
}

type subscription struct {
	eventType string
	decode    func(body []byte) (decoded, error)
	handlers  []handlerSlot
}

type decoded struct {
	meta    common.Meta
	payload any // T, fed to the validator
	env     any // common.GenericEnvelope[T]
}

type handlerSlot struct {
	name   string
	invoke func(ctx context.Context, env any) error
}

func NewRegistry() *Registry {
	return &Registry{subs: map[string]*subscription{}}
}

// Subscribe appends a handler for T. factory is called once per message,
// so no handler instance is shared between deliveries.
func Subscribe[T common.Event](r *Registry, factory func() Handler[T]) error {
	if factory == nil {
		return ErrNilHandler
	}
	sample := factory()
	if sample == nil {
		return ErrNilHandler
	}

	slot := handlerSlot{
		name: fmt.Sprintf("%T", sample),
		invoke: func(ctx context.Context, env any) error {
			h := factory()
			if h == nil {
				return ErrNilHandler
			}
			return h.Handle(ctx, env.(common.GenericEnvelope[T]))
		},
	}
	return r.add(common.TypeOf[T](), decodeAs[T], slot)
}

// SubscribeFunc registers fn as a stateless handler for T.
func SubscribeFunc[T common.Event](r *Registry, fn func(ctx context.Context, env common.GenericEnvelope[T]) error) error {
	if fn == nil {
		return ErrNilHandler
	}
	return Subscribe(r, func() Handler[T] { return HandlerFunc[T](fn) })
}

func decodeAs[T common.Event](body []byte) (decoded, error) {
	var env common.GenericEnvelope[T]
	if err := jsoncodec.Unmarshal(body, &env); err != nil {
		return decoded{}, err
	}
	return decoded{meta: env.Meta, payload: env.Data, env: env}, nil
}

func (r *Registry) add(eventType string, decode func([]byte) (decoded, error), slot handlerSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return ErrRegistryFrozen
	}

	sub, ok := r.subs[eventType]
	if !ok {
		sub = &subscription{eventType: eventType, decode: decode}
		r.subs[eventType] = sub
		r.order = append(r.order, eventType)
	}
	sub.handlers = append(sub.handlers, slot)
	return nil
}

// EventTypes lists subscribed event types in first-subscription order.
func (r *Registry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Handlers lists the handler type names registered for eventType.
func (r *Registry) Handlers(eventType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[eventType]
	if !ok {
		return nil
	}
	names := make([]string, len(sub.handlers))
	for i, h := range sub.handlers {
		names[i] = h.name
	}
	return names
}

func (r *Registry) Frozen() bool { return r.frozen.Load() }

func (r *Registry) freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

func (r *Registry) lookup(eventType string) (*subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[eventType]
	return sub, ok
}

package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var errPoolClosed = errors.New("channel pool closed")

// channelPool keeps publish channels open on one connection.
// Invariant: len(permits) == idle + borrowed channels <= capacity.
type channelPool struct {
	conn       *amqp.Connection
	idle       chan *amqp.Channel
	permits    chan struct{}
	retryDelay time.Duration
	confirms   bool

	closed atomic.Bool
	openMu sync.Mutex
}

func newChannelPool(conn *amqp.Connection, capacity int, retryDelay time.Duration, confirms bool) *channelPool {
	if capacity <= 0 {
		capacity = 16
	}
	return &channelPool{
		conn:       conn,
		idle:       make(chan *amqp.Channel, capacity),
		permits:    make(chan struct{}, capacity),
		retryDelay: orDuration(retryDelay, 50*time.Millisecond),
		confirms:   confirms,
	}
}

// get hands out an idle channel or opens a new one while under capacity,
// waiting for a returned channel otherwise.
func (p *channelPool) get(ctx context.Context) (*amqp.Channel, error) {
	for {
		if p.closed.Load() {
			return nil, errPoolClosed
		}
		if p.conn.IsClosed() {
			return nil, amqp.ErrClosed
		}

		select {
		case ch, ok := <-p.idle:
			if !ok {
				return nil, errPoolClosed
			}
			if !ch.IsClosed() {
				return ch, nil
			}
			// the permit follows the dead channel's replacement
			if nch, err := p.open(); err == nil {
				return nch, nil
			}
			p.release()
		case p.permits <- struct{}{}:
			nch, err := p.open()
			if err == nil {
				return nch, nil
			}
			p.release()
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		if !sleepCtx(ctx, p.retryDelay) {
			return nil, ctx.Err()
		}
	}
}

// put returns ch to the pool, discarding it if it is no longer usable.
func (p *channelPool) put(ch *amqp.Channel) {
	if ch == nil {
		return
	}
	if p.closed.Load() || ch.IsClosed() {
		safeClose(ch)
		p.release()
		return
	}
	select {
	case p.idle <- ch:
	default:
		safeClose(ch)
		p.release()
	}
}

func (p *channelPool) close() {
	if p.closed.Swap(true) {
		return
	}
	for {
		select {
		case ch := <-p.idle:
			safeClose(ch)
			p.release()
		default:
			return
		}
	}
}

func (p *channelPool) open() (*amqp.Channel, error) {
	p.openMu.Lock()
	defer p.openMu.Unlock()
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := prepareChannel(ch, p.confirms); err != nil {
		safeClose(ch)
		return nil, err
	}
	return ch, nil
}

type confirmer interface {
	Confirm(noWait bool) error
}

// prepareChannel switches a fresh publish channel into confirm mode once,
// for its whole life in the pool.
func prepareChannel(ch confirmer, confirms bool) error {
	if !confirms {
		return nil
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("confirm mode: %w", err)
	}
	return nil
}

func (p *channelPool) release() {
	select {
	case <-p.permits:
	default:
	}
}

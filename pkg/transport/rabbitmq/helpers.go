package rabbitmq

import (
	"context"
	"math/rand/v2"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// jitteredDelay spreads base by ±jitterPct percent, capped at ceiling.
func jitteredDelay(base, ceiling time.Duration, jitterPct int) time.Duration {
	if jitterPct <= 0 {
		jitterPct = 25
	}
	delta := (rand.Float64()*2 - 1) * float64(jitterPct) / 100.0
	wait := time.Duration(float64(base) * (1 + delta))
	if wait <= 0 {
		wait = base
	}
	if wait > ceiling {
		wait = ceiling
	}
	return wait
}

func nextBackoff(cur, ceiling time.Duration) time.Duration {
	if cur*2 > ceiling {
		return ceiling
	}
	return cur * 2
}

// sleepCtx waits d or until ctx ends, reporting whether the full wait elapsed.
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

// deathCount is how many times d was dead-lettered out of queue.
func deathCount(d amqp.Delivery, queue string) int {
	list, ok := d.Headers["x-death"].([]any)
	if !ok {
		return 0
	}
	for _, it := range list {
		m, ok := it.(amqp.Table)
		if !ok {
			continue
		}
		if q, _ := m["queue"].(string); q != queue {
			continue
		}
		switch n := m["count"].(type) {
		case int64:
			return int(n)
		case int32:
			return int(n)
		case int:
			return n
		}
	}
	return 0
}

func toTable(h map[string]string) amqp.Table {
	t := make(amqp.Table, len(h))
	for k, v := range h {
		t[k] = v
	}
	return t
}

// fromTable keeps only string headers; x-death and friends are dropped.
func fromTable(t amqp.Table) map[string]string {
	h := make(map[string]string, len(t))
	for k, v := range t {
		if s, ok := v.(string); ok {
			h[k] = s
		}
	}
	return h
}

func safeClose(ch *amqp.Channel) {
	if ch == nil {
		return
	}
	defer func() { _ = recover() }()
	_ = ch.Close()
}

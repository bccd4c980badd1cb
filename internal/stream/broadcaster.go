package stream

import (
	"errors"
	"sync/atomic"
)

// Broadcaster delivers each message to every registered subscriber.
//
// Delivery is best-effort and at most once per subscriber: nothing is
// retried or buffered for subscribers that have gone away.
type Broadcaster struct {
	registry *Registry
	logger   Logger

	published atomic.Int64
	delivered atomic.Int64
	slowDrops atomic.Int64
	removed   atomic.Int64
}

// BroadcastStats counts broadcaster activity since start.
type BroadcastStats struct {
	Published int64 `json:"published"`
	Delivered int64 `json:"delivered"`
	SlowDrops int64 `json:"slow_drops"`
	Removed   int64 `json:"removed"`
}

// NewBroadcaster publishes to the subscribers in registry.
func NewBroadcaster(registry *Registry, logger Logger) *Broadcaster {
	return &Broadcaster{registry: registry, logger: orNoop(logger)}
}

// Publish sends msg to a snapshot of the registry and returns how many
// subscribers accepted it. A subscriber whose Send fails for any reason
// other than a full buffer is removed from the registry and closed; the
// remaining subscribers still receive msg.
func (b *Broadcaster) Publish(msg []byte) int {
	b.published.Add(1)

	subs := b.registry.Snapshot()
	if len(subs) == 0 {
		b.logger.Debug("no subscribers, message not forwarded")
		return 0
	}

	delivered := 0
	for _, sub := range subs {
		err := sub.Send(msg)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrSlowSubscriber):
			b.slowDrops.Add(1)
			b.logger.Warn("subscriber too slow, message dropped", "subscriber", sub.ID())
		default:
			if b.registry.Remove(sub) {
				b.removed.Add(1)
			}
			_ = sub.Close() //nolint:errcheck // already failing
			b.logger.Info("subscriber removed after failed send", "subscriber", sub.ID(), "error", err)
		}
	}

	b.delivered.Add(int64(delivered))
	return delivered
}

// Stats returns a point-in-time copy of the counters.
func (b *Broadcaster) Stats() BroadcastStats {
	return BroadcastStats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		SlowDrops: b.slowDrops.Load(),
		Removed:   b.removed.Load(),
	}
}

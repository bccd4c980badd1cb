package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ychetra/demo-light/internal/device"
)

// Bootstrapper replays the stored state of every device to a subscriber
// that has just joined.
type Bootstrapper struct {
	store   device.Store
	logger  Logger
	timeout time.Duration
	now     func() time.Time

	snapshots atomic.Int64
	frames    atomic.Int64
	dropped   atomic.Int64
	failures  atomic.Int64
}

// BootstrapStats counts snapshot replays since start. Dropped counts
// frames a subscriber refused; StoreFailures counts joins that started
// empty because the store could not be read.
type BootstrapStats struct {
	Snapshots     int64 `json:"snapshots"`
	Frames        int64 `json:"frames"`
	Dropped       int64 `json:"dropped"`
	StoreFailures int64 `json:"store_failures"`
}

// NewBootstrapper reads snapshots from store. timeout bounds each
// Store.All call; zero means no extra bound.
func NewBootstrapper(store device.Store, timeout time.Duration, logger Logger) *Bootstrapper {
	return &Bootstrapper{
		store:   store,
		logger:  orNoop(logger),
		timeout: timeout,
		now:     time.Now,
	}
}

// Bootstrap hands sub one snapshot frame per stored device, as a single
// batch, and returns the number of frames queued. A store failure yields
// no frames.
func (b *Bootstrapper) Bootstrap(ctx context.Context, sub Subscriber) int {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	b.snapshots.Add(1)

	states, err := b.store.All(ctx)
	if err != nil {
		b.failures.Add(1)
		b.logger.Warn("reading snapshot failed, subscriber starts empty", "subscriber", sub.ID(), "error", err)
		return 0
	}
	if len(states) == 0 {
		return 0
	}

	now := b.now()
	frames := make([][]byte, len(states))
	for i, st := range states {
		frames[i] = device.SnapshotFrame(st, now)
	}

	if err := sub.SendSnapshot(frames); err != nil {
		b.dropped.Add(int64(len(frames)))
		b.logger.Warn("sending snapshot failed", "subscriber", sub.ID(), "devices", len(frames), "error", err)
		return 0
	}

	b.frames.Add(int64(len(frames)))
	b.logger.Debug("snapshot sent", "subscriber", sub.ID(), "devices", len(frames))
	return len(frames)
}

// Stats returns a point-in-time copy of the counters.
func (b *Bootstrapper) Stats() BootstrapStats {
	return BootstrapStats{
		Snapshots:     b.snapshots.Load(),
		Frames:        b.frames.Load(),
		Dropped:       b.dropped.Load(),
		StoreFailures: b.failures.Load(),
	}
}

package stream

import (
	"context"
	"sync/atomic"
)

// DefaultQueueSize is used when HubConfig.QueueSize is not positive.
const DefaultQueueSize = 1024

// HubConfig configures a Hub.
type HubConfig struct {
	// QueueSize bounds the number of operations waiting for the loop.
	QueueSize int
}

// op is one unit of work for the hub loop.
type op interface {
	run(ctx context.Context, h *Hub)
}

type ingestOp struct {
	topic   string
	payload []byte
}

func (o ingestOp) run(ctx context.Context, h *Hub) {
	_ = h.ingestor.Process(ctx, o.topic, o.payload) //nolint:errcheck // logged and counted by the ingestor
}

type joinOp struct {
	sub  Subscriber
	done chan int
}

func (o joinOp) run(ctx context.Context, h *Hub) {
	sent := h.bootstrapper.Bootstrap(ctx, o.sub)
	if h.registry.Add(o.sub) {
		h.logger.Info("subscriber joined", "subscriber", o.sub.ID(), "snapshot", sent, "subscribers", h.registry.Len())
	}
	o.done <- sent
}

// Hub serialises ingestion and subscriber joins on one goroutine.
type Hub struct {
	queue        chan op
	ingestor     *Ingestor
	bootstrapper *Bootstrapper
	registry     *Registry
	logger       Logger

	stopped chan struct{}
	closed  atomic.Bool
	dropped atomic.Int64
	joins   atomic.Int64
	leaves  atomic.Int64
}

// HubStats describes the hub at a point in time.
type HubStats struct {
	Subscribers int            `json:"subscribers"`
	QueueDepth  int            `json:"queue_depth"`
	QueueSize   int            `json:"queue_size"`
	Dropped     int64          `json:"dropped"`
	Joins       int64          `json:"joins"`
	Leaves      int64          `json:"leaves"`
	Ingest      IngestStats    `json:"ingest"`
	Broadcast   BroadcastStats `json:"broadcast"`
	Bootstrap   BootstrapStats `json:"bootstrap"`
}

// NewHub wires the loop to its collaborators. Call Run to start it.
func NewHub(cfg HubConfig, registry *Registry, ingestor *Ingestor, bootstrapper *Bootstrapper, logger Logger) *Hub {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Hub{
		queue:        make(chan op, size),
		ingestor:     ingestor,
		bootstrapper: bootstrapper,
		registry:     registry,
		logger:       orNoop(logger),
		stopped:      make(chan struct{}),
	}
}

// Run processes operations until ctx is cancelled. The operation in
// progress at cancellation completes; queued operations are discarded.
// Every registered subscriber is then closed.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("stream hub started", "queue_size", cap(h.queue))

	// Store calls made by an operation must not be cut short by shutdown.
	opCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil
		case o := <-h.queue:
			o.run(opCtx, h)
		}
	}
}

func (h *Hub) shutdown() {
	h.closed.Store(true)
	close(h.stopped)

	subs := h.registry.Drain()
	for _, sub := range subs {
		_ = sub.Close() //nolint:errcheck // best effort during shutdown
	}
	h.logger.Info("stream hub stopped",
		"closed_subscribers", len(subs), "discarded_ops", len(h.queue), "dropped", h.dropped.Load())
}

// HandleMessage queues one broker message without blocking. It is meant
// to be called from the MQTT callback goroutine. payload is copied.
func (h *Hub) HandleMessage(topic string, payload []byte) error {
	if h.closed.Load() {
		return ErrHubClosed
	}

	o := ingestOp{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case h.queue <- o:
		return nil
	default:
		n := h.dropped.Add(1)
		h.logger.Warn("ingest queue full, message dropped", "topic", topic, "dropped_total", n)
		return ErrQueueFull
	}
}

// Join bootstraps sub with the stored snapshot and registers it for live
// traffic, on the hub loop. It blocks until the join has run, ctx is done
// or the hub stops, and returns the number of snapshot frames sent.
func (h *Hub) Join(ctx context.Context, sub Subscriber) (int, error) {
	if h.closed.Load() {
		return 0, ErrHubClosed
	}

	o := joinOp{sub: sub, done: make(chan int, 1)}
	select {
	case h.queue <- o:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.stopped:
		return 0, ErrHubClosed
	}

	select {
	case sent := <-o.done:
		h.joins.Add(1)
		return sent, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.stopped:
		return 0, ErrHubClosed
	}
}

// Leave removes sub from live traffic. Safe to call more than once.
func (h *Hub) Leave(sub Subscriber) {
	if h.registry.Remove(sub) {
		h.leaves.Add(1)
		h.logger.Info("subscriber left", "subscriber", sub.ID(), "subscribers", h.registry.Len())
	}
}

// Done is closed once the loop has stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.stopped
}

// Stats returns hub, ingest and broadcast counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Subscribers: h.registry.Len(),
		QueueDepth:  len(h.queue),
		QueueSize:   cap(h.queue),
		Dropped:     h.dropped.Load(),
		Joins:       h.joins.Load(),
		Leaves:      h.leaves.Load(),
		Ingest:      h.ingestor.Stats(),
		Broadcast:   h.ingestor.broadcaster.Stats(),
		Bootstrap:   h.bootstrapper.Stats(),
	}
}

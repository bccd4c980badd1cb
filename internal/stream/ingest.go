package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ychetra/demo-light/internal/device"
)

// Recorder receives every accepted status change, e.g. for time-series
// telemetry. Implementations must not block.
type Recorder interface {
	RecordStatus(deviceName, status string, at time.Time)
}

// Ingestor turns raw broker messages into persisted state and broadcasts.
type Ingestor struct {
	store       device.Store
	broadcaster *Broadcaster
	recorder    Recorder
	validator   *device.Validator
	logger      Logger
	timeout     time.Duration
	now         func() time.Time

	accepted    atomic.Int64
	malformed   atomic.Int64
	rejected    atomic.Int64
	storeErrors atomic.Int64
}

// IngestStats counts ingestion outcomes since start.
type IngestStats struct {
	Accepted    int64 `json:"accepted"`
	Malformed   int64 `json:"malformed"`
	Rejected    int64 `json:"rejected"`
	StoreErrors int64 `json:"store_errors"`
}

// IngestorOption configures optional Ingestor collaborators.
type IngestorOption func(*Ingestor)

// WithRecorder forwards accepted events to r.
func WithRecorder(r Recorder) IngestorOption {
	return func(i *Ingestor) { i.recorder = r }
}

// WithValidator applies strict validation to parsed events.
func WithValidator(v *device.Validator) IngestorOption {
	return func(i *Ingestor) { i.validator = v }
}

// WithStoreTimeout bounds each Store.Upsert call.
func WithStoreTimeout(d time.Duration) IngestorOption {
	return func(i *Ingestor) { i.timeout = d }
}

// NewIngestor persists to store and publishes through broadcaster.
func NewIngestor(store device.Store, broadcaster *Broadcaster, logger Logger, opts ...IngestorOption) *Ingestor {
	i := &Ingestor{
		store:       store,
		broadcaster: broadcaster,
		logger:      orNoop(logger),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Process handles one message. Malformed or rejected payloads are logged,
// counted and dropped: the store is untouched and nothing is broadcast.
// An accepted payload is upserted and then broadcast verbatim; a failed
// upsert is logged and the payload is still broadcast.
//
// The returned error describes why a payload was dropped. It is nil for
// every accepted payload, including those whose upsert failed.
func (i *Ingestor) Process(ctx context.Context, topic string, payload []byte) error {
	ev, err := device.ParseEvent(topic, payload, i.now())
	if err != nil {
		i.malformed.Add(1)
		i.logger.Warn("dropping malformed message", "topic", topic, "error", err, "payload_bytes", len(payload))
		return err
	}

	if err := i.validator.Validate(ev); err != nil {
		i.rejected.Add(1)
		i.logger.Warn("dropping message that failed validation", "topic", topic, "device_name", ev.DeviceName, "error", err)
		return err
	}

	if err := i.upsert(ctx, ev); err != nil {
		i.storeErrors.Add(1)
		i.logger.Error("persisting device status failed, broadcasting anyway",
			"device_name", ev.DeviceName, "status", ev.Status, "error", err)
	}

	if i.recorder != nil {
		i.recorder.RecordStatus(ev.DeviceName, ev.Status, ev.ReceivedAt)
	}

	delivered := i.broadcaster.Publish(ev.Raw)
	i.accepted.Add(1)

	i.logger.Debug("device status processed",
		"device_name", ev.DeviceName, "status", ev.Status, "topic", topic, "delivered", delivered)
	return nil
}

func (i *Ingestor) upsert(ctx context.Context, ev device.Event) error {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}
	return i.store.Upsert(ctx, ev.DeviceName, ev.Status)
}

// Stats returns a point-in-time copy of the counters.
func (i *Ingestor) Stats() IngestStats {
	return IngestStats{
		Accepted:    i.accepted.Load(),
		Malformed:   i.malformed.Load(),
		Rejected:    i.rejected.Load(),
		StoreErrors: i.storeErrors.Load(),
	}
}

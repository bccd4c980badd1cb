package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ychetra/demo-light/internal/device"
)

func newTestHub(store device.Store, queueSize int) *Hub {
	r := NewRegistry()
	ing := NewIngestor(store, NewBroadcaster(r, nil), nil)
	return NewHub(HubConfig{QueueSize: queueSize}, r, ing, NewBootstrapper(store, time.Second, nil), nil)
}

func runHub(t *testing.T, h *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return cancel
}

func TestHub_SnapshotBeforeLive(t *testing.T) {
	ctx := context.Background()
	store := device.NewMemoryStore()
	require.NoError(t, store.Upsert(ctx, "L1R1_B1", "on"))

	h := newTestHub(store, 16)
	runHub(t, h)

	sub := newFakeSubscriber("a")
	sent, err := h.Join(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	live := `{"device_name":"L1R1_B1","l1r1_b1":"off"}`
	require.NoError(t, h.HandleMessage("switches/L1R1_B1", []byte(live)))

	require.Eventually(t, func() bool { return len(sub.messages()) == 2 }, time.Second, 5*time.Millisecond)
	msgs := sub.messages()

	var first map[string]string
	require.NoError(t, json.Unmarshal([]byte(msgs[0]), &first))
	assert.Equal(t, "database", first["source"])
	assert.Equal(t, "on", first["l1r1_b1"])
	assert.Equal(t, live, msgs[1])
}

func TestHub_JoinSeesEarlierEvents(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(device.NewMemoryStore(), 16)
	runHub(t, h)

	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, h.HandleMessage("t", []byte(`{"device_name":"`+name+`","`+device.StatusKey(name)+`":"on"}`)))
	}

	// The join is queued behind the three ingests.
	sent, err := h.Join(ctx, newFakeSubscriber("late"))
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
}

func TestHub_HandleMessageCopiesPayload(t *testing.T) {
	ctx := context.Background()
	store := device.NewMemoryStore()
	h := newTestHub(store, 16)

	buf := []byte(`{"device_name":"L1","l1":"on"}`)
	require.NoError(t, h.HandleMessage("t", buf))
	copy(buf, `{"device_name":"XX","xx":"no"}`)

	runHub(t, h)
	require.Eventually(t, func() bool {
		_, err := store.Get(ctx, "L1")
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestHub_QueueFull(t *testing.T) {
	h := newTestHub(device.NewMemoryStore(), 1)

	require.NoError(t, h.HandleMessage("t", []byte(`{}`)))
	assert.ErrorIs(t, h.HandleMessage("t", []byte(`{}`)), ErrQueueFull)

	stats := h.Stats()
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, 1, stats.QueueDepth)
	assert.Equal(t, 1, stats.QueueSize)
}

func TestHub_JoinHonoursContext(t *testing.T) {
	h := newTestHub(device.NewMemoryStore(), 1)
	require.NoError(t, h.HandleMessage("t", []byte(`{}`)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Join(ctx, newFakeSubscriber("a"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHub_LeaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(device.NewMemoryStore(), 4)
	runHub(t, h)

	sub := newFakeSubscriber("a")
	_, err := h.Join(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Stats().Subscribers)

	h.Leave(sub)
	h.Leave(sub)

	stats := h.Stats()
	assert.Equal(t, 0, stats.Subscribers)
	assert.Equal(t, int64(1), stats.Joins)
	assert.Equal(t, int64(1), stats.Leaves)
}

func TestHub_ShutdownClosesSubscribers(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(device.NewMemoryStore(), 4)

	runCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(runCtx) }()

	a, b := newFakeSubscriber("a"), newFakeSubscriber("b")
	_, err := h.Join(ctx, a)
	require.NoError(t, err)
	_, err = h.Join(ctx, b)
	require.NoError(t, err)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	assert.Equal(t, 1, a.closeCount())
	assert.Equal(t, 1, b.closeCount())
	assert.Equal(t, 0, h.Stats().Subscribers)

	assert.ErrorIs(t, h.HandleMessage("t", []byte(`{}`)), ErrHubClosed)
	_, err = h.Join(ctx, newFakeSubscriber("c"))
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_StatsAggregates(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(device.NewMemoryStore(), 8)
	runHub(t, h)

	_, err := h.Join(ctx, newFakeSubscriber("a"))
	require.NoError(t, err)

	require.NoError(t, h.HandleMessage("t", []byte(`garbage`)))
	require.NoError(t, h.HandleMessage("t", []byte(`{"device_name":"L1","l1":"on"}`)))

	require.Eventually(t, func() bool {
		s := h.Stats()
		return s.Ingest.Accepted == 1 && s.Ingest.Malformed == 1
	}, time.Second, 5*time.Millisecond)

	s := h.Stats()
	assert.Equal(t, int64(1), s.Broadcast.Delivered)
	assert.Equal(t, 1, s.Subscribers)
	assert.Equal(t, int64(1), s.Bootstrap.Snapshots)
	assert.Zero(t, s.Bootstrap.Dropped)
}

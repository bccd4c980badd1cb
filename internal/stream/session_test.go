package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ychetra/demo-light/internal/device"
)

func TestSessionState_String(t *testing.T) {
	assert.Equal(t, "connecting", SessionConnecting.String())
	assert.Equal(t, "active", SessionActive.String())
	assert.Equal(t, "closed", SessionClosed.String())
	assert.Equal(t, "unknown", SessionState(9).String())
}

func TestSessionConfig_Defaults(t *testing.T) {
	cfg := SessionConfig{SendBuffer: 4}.withDefaults()
	assert.Equal(t, 4, cfg.SendBuffer)
	assert.Equal(t, DefaultPingInterval, cfg.PingInterval)
	assert.Equal(t, DefaultPongTimeout, cfg.PongTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, int64(DefaultMaxMessageSize), cfg.MaxMessageSize)
}

func TestSession_SendBufferFull(t *testing.T) {
	s := NewSession(nil, SessionConfig{SendBuffer: 1}, nil)

	require.NoError(t, s.Send([]byte("a")))
	assert.ErrorIs(t, s.Send([]byte("b")), ErrSlowSubscriber)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, SessionConnecting, s.State())
}

func TestSession_SendSnapshotOnce(t *testing.T) {
	s := NewSession(nil, SessionConfig{SendBuffer: 1}, nil)

	require.NoError(t, s.SendSnapshot([][]byte{[]byte("a"), []byte("b"), []byte("c")}))
	assert.ErrorIs(t, s.SendSnapshot([][]byte{[]byte("d")}), ErrSnapshotQueued)

	// The snapshot does not use the live buffer.
	require.NoError(t, s.Send([]byte("live")))
}

// streamServer exposes a hub over a real websocket endpoint.
type streamServer struct {
	hub    *Hub
	store  *device.MemoryStore
	server *httptest.Server
	cfg    SessionConfig
}

func newStreamServer(t *testing.T, cfg SessionConfig) *streamServer {
	t.Helper()

	ss := &streamServer{store: device.NewMemoryStore(), cfg: cfg}
	ss.hub = newTestHub(ss.store, 64)
	runHub(t, ss.hub)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ss.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = NewSession(conn, ss.cfg, nil).Serve(r.Context(), ss.hub)
	}))
	t.Cleanup(ss.server.Close)
	return ss
}

func (ss *streamServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ss.server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestSession_EndToEnd(t *testing.T) {
	ctx := context.Background()
	ss := newStreamServer(t, SessionConfig{})
	require.NoError(t, ss.store.Upsert(ctx, "L1R1_B1", "ON"))

	// A joins and receives the stored state.
	a := ss.dial(t)
	snap := readFrame(t, a)
	assert.Equal(t, "L1R1_B1", snap["device_name"])
	assert.Equal(t, "on", snap["l1r1_b1"])
	assert.Equal(t, "database", snap["source"])

	// A live event reaches A verbatim.
	require.NoError(t, ss.hub.HandleMessage("switches/L1R1_B2", []byte(`{"device_name":"L1R1_B2","l1r1_b2":"on"}`)))
	live := readFrame(t, a)
	assert.Equal(t, "L1R1_B2", live["device_name"])
	assert.NotContains(t, live, "source")

	// B joins after the event and sees both devices in its snapshot.
	b := ss.dial(t)
	got := map[string]any{}
	for i := 0; i < 2; i++ {
		f := readFrame(t, b)
		got[f["device_name"].(string)] = f
	}
	assert.Contains(t, got, "L1R1_B1")
	assert.Contains(t, got, "L1R1_B2")

	// Both receive the next event.
	require.NoError(t, ss.hub.HandleMessage("t", []byte(`{"device_name":"L1R1_B1","l1r1_b1":"off"}`)))
	assert.Equal(t, "off", readFrame(t, a)["l1r1_b1"])
	assert.Equal(t, "off", readFrame(t, b)["l1r1_b1"])

	// A disconnects; B keeps receiving.
	require.NoError(t, a.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	a.Close()
	require.Eventually(t, func() bool { return ss.hub.Stats().Subscribers == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ss.hub.HandleMessage("t", []byte(`{"device_name":"L1R1_B2","l1r1_b2":"off"}`)))
	assert.Equal(t, "off", readFrame(t, b)["l1r1_b2"])
}

func TestSession_InboundFramesIgnored(t *testing.T) {
	ss := newStreamServer(t, SessionConfig{})
	conn := ss.dial(t)
	require.Eventually(t, func() bool { return ss.hub.Stats().Subscribers == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe"}`)))
	require.NoError(t, ss.hub.HandleMessage("t", []byte(`{"device_name":"L9","l9":"on"}`)))

	assert.Equal(t, "L9", readFrame(t, conn)["device_name"])
	assert.Equal(t, 1, ss.hub.Stats().Subscribers)
}

func TestSession_ServerSendsPings(t *testing.T) {
	ss := newStreamServer(t, SessionConfig{PingInterval: 20 * time.Millisecond, PongTimeout: time.Second})
	conn := ss.dial(t)

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(data string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}

func TestSession_ClosedByHubShutdown(t *testing.T) {
	store := device.NewMemoryStore()
	hub := newTestHub(store, 8)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = NewSession(conn, SessionConfig{}, nil).Serve(r.Context(), hub)
	}))
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Stats().Subscribers == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-hub.Done()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "expected going-away close, got %v", err)
}

func TestSession_SnapshotLargerThanSendBuffer(t *testing.T) {
	ctx := context.Background()
	ss := newStreamServer(t, SessionConfig{SendBuffer: 4})

	const devices = 1000
	for i := 0; i < devices; i++ {
		require.NoError(t, ss.store.Upsert(ctx, fmt.Sprintf("L%dR1_B1", i), "on"))
	}

	conn := ss.dial(t)
	require.Eventually(t, func() bool { return ss.hub.Stats().Subscribers == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, ss.hub.HandleMessage("t", []byte(`{"device_name":"LIVE","live":"on"}`)))

	seen := make(map[string]bool, devices)
	for i := 0; i < devices; i++ {
		f := readFrame(t, conn)
		require.Equal(t, "database", f["source"], "live frame arrived before the snapshot finished")
		seen[f["device_name"].(string)] = true
	}
	assert.Len(t, seen, devices)

	assert.Equal(t, "LIVE", readFrame(t, conn)["device_name"])

	stats := ss.hub.Stats().Bootstrap
	assert.Equal(t, int64(devices), stats.Frames)
	assert.Zero(t, stats.Dropped)
}

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ychetra/demo-light/internal/device"
	"github.com/ychetra/demo-light/internal/infrastructure/config"
	"github.com/ychetra/demo-light/internal/infrastructure/logging"
	"github.com/ychetra/demo-light/internal/stream"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func loadTestConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	cfg, err := config.Load(writeTestConfig(t, body))
	require.NoError(t, err)
	return cfg
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("LIGHTBRIDGE_CONFIG", "")
	assert.Equal(t, defaultConfigPath, getConfigPath())

	t.Setenv("LIGHTBRIDGE_CONFIG", "/etc/lightbridge.yaml")
	assert.Equal(t, "/etc/lightbridge.yaml", getConfigPath())
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("LIGHTBRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestRun_ValidationFailure(t *testing.T) {
	t.Setenv("LIGHTBRIDGE_CONFIG", writeTestConfig(t, `
store:
  backend: "cassandra"
`))

	err := run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.backend")
}

func TestRun_MQTTUnavailable(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the MQTT connect timeout")
	}

	t.Setenv("LIGHTBRIDGE_CONFIG", writeTestConfig(t, `
logging:
  level: error
store:
  backend: memory
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1
    client_id: "lightbridge-test"
`))

	err := run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to MQTT")
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	log := logging.Discard()

	t.Run("memory", func(t *testing.T) {
		cfg := loadTestConfig(t, "store:\n  backend: memory\n")

		b, err := openStore(ctx, cfg, log)
		require.NoError(t, err)
		defer b.close()

		assert.NotNil(t, b.history)
		assert.Nil(t, b.check)
		assert.Nil(t, b.db)
	})

	t.Run("sqlite", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "lightbridge.db")
		cfg := loadTestConfig(t, "store:\n  backend: sqlite\ndatabase:\n  path: \""+dbPath+"\"\n")

		b, err := openStore(ctx, cfg, log)
		require.NoError(t, err)
		defer b.close()

		require.NotNil(t, b.db)
		require.NoError(t, b.check(ctx))

		require.NoError(t, b.store.Upsert(ctx, "L1R1_B1", "on"))
		st, err := b.store.Get(ctx, "L1R1_B1")
		require.NoError(t, err)
		assert.Equal(t, "on", st.Status)

		entries, err := b.history.History(ctx, "L1R1_B1", 0)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := loadTestConfig(t, "store:\n  backend: memory\n")
		cfg.Store.Backend = "cassandra"

		_, err := openStore(ctx, cfg, log)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "cassandra"))
	})
}

func TestBuildHub(t *testing.T) {
	log := logging.Discard()

	t.Run("strict validation", func(t *testing.T) {
		cfg := loadTestConfig(t, "store:\n  backend: memory\ningest:\n  strict: true\n")
		store := device.NewMemoryStore()

		hub, err := buildHub(cfg, store, nil, log)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		go func() { _ = hub.Run(ctx) }()
		defer func() {
			cancel()
			<-hub.Done()
		}()

		require.NoError(t, hub.HandleMessage("t", []byte(`{"device_name":"kitchen","kitchen":"on"}`)))
		require.NoError(t, hub.HandleMessage("t", []byte(`{"device_name":"L1R1_B1","l1r1_b1":"on"}`)))

		require.Eventually(t, func() bool {
			s := hub.Stats().Ingest
			return s.Accepted == 1 && s.Rejected == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("bad pattern", func(t *testing.T) {
		cfg := loadTestConfig(t, "store:\n  backend: memory\n")
		cfg.Ingest.Strict = true
		cfg.Ingest.DevicePattern = "L(["

		_, err := buildHub(cfg, device.NewMemoryStore(), nil, log)
		assert.Error(t, err)
	})
}

func TestFeedHandler_SwallowsBackPressure(t *testing.T) {
	cfg := loadTestConfig(t, "store:\n  backend: memory\nstream:\n  queue_size: 1\n")
	hub, err := buildHub(cfg, device.NewMemoryStore(), nil, logging.Discard())
	require.NoError(t, err)

	handler := feedHandler(hub)
	require.NoError(t, handler("t", []byte(`{}`)))
	require.NoError(t, handler("t", []byte(`{}`)), "full queue is not a handler error")
	assert.Equal(t, int64(1), hub.Stats().Dropped)

	assert.ErrorIs(t, hub.HandleMessage("t", []byte(`{}`)), stream.ErrQueueFull)
}

// recordingSource logs the calls made on it.
type recordingSource struct {
	calls          []string
	unsubscribeErr error
}

func (r *recordingSource) Unsubscribe(filter string) error {
	r.calls = append(r.calls, "unsubscribe "+filter)
	return r.unsubscribeErr
}

func (r *recordingSource) Close() error {
	r.calls = append(r.calls, "close")
	return nil
}

func TestStopIngest(t *testing.T) {
	t.Run("unsubscribes before closing", func(t *testing.T) {
		src := &recordingSource{}
		stopIngest(src, "switches/#", logging.Discard())
		assert.Equal(t, []string{"unsubscribe switches/#", "close"}, src.calls)
	})

	t.Run("closes after failed unsubscribe", func(t *testing.T) {
		src := &recordingSource{unsubscribeErr: errors.New("not connected")}
		stopIngest(src, "switches/#", logging.Discard())
		assert.Equal(t, []string{"unsubscribe switches/#", "close"}, src.calls)
	})
}

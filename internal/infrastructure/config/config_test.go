package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker:
    host: "broker.local"
    port: 1884
    client_id: "test-client"
  qos: 0
  topic: "switches/#"
store:
  backend: "sqlite"
database:
  path: "/tmp/test.db"
api:
  port: 9000
websocket:
  path: "/stream"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "broker.local", cfg.MQTT.Broker.Host)
	assert.Equal(t, 1884, cfg.MQTT.Broker.Port)
	assert.Equal(t, 0, cfg.MQTT.QoS)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, "/stream", cfg.WebSocket.Path)

	// Untouched sections keep their defaults.
	assert.Equal(t, 256, cfg.WebSocket.SendBuffer)
	assert.Equal(t, 10, cfg.WebSocket.WriteTimeout)
	assert.Equal(t, 1024, cfg.Stream.QueueSize)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: "cassandra"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.backend")
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker:
    host: "from-file"
`)

	t.Setenv("LIGHTBRIDGE_MQTT_HOST", "from-env")
	t.Setenv("LIGHTBRIDGE_MQTT_PASSWORD", "secret")
	t.Setenv("LIGHTBRIDGE_API_PORT", "9100")
	t.Setenv("LIGHTBRIDGE_INGEST_ALLOWED_STATUSES", "on,off,dim")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.MQTT.Broker.Host)
	assert.Equal(t, "secret", cfg.MQTT.Auth.Password)
	assert.Equal(t, 9100, cfg.API.Port)
	assert.Equal(t, []string{"on", "off", "dim"}, cfg.Ingest.AllowedStatuses)
}

func TestApplyEnvOverrides_LeavesUnsetFields(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Path = "/custom/path.db"

	t.Setenv("LIGHTBRIDGE_STORE_BACKEND", "memory")

	require.NoError(t, applyEnvOverrides(cfg))

	assert.Equal(t, StoreBackendMemory, cfg.Store.Backend)
	assert.Equal(t, "/custom/path.db", cfg.Database.Path)
	assert.Equal(t, "switches/#", cfg.MQTT.Topic)
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing file is not an error", func(t *testing.T) {
		assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("loads variables", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("LIGHTBRIDGE_TEST_DOTENV=loaded\n"), 0600))
		t.Cleanup(func() { os.Unsetenv("LIGHTBRIDGE_TEST_DOTENV") })

		require.NoError(t, loadDotEnv(path))
		assert.Equal(t, "loaded", os.Getenv("LIGHTBRIDGE_TEST_DOTENV"))
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "missing topic",
			mutate:  func(c *Config) { c.MQTT.Topic = "" },
			wantErr: "mqtt.topic",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name: "postgres without url",
			mutate: func(c *Config) {
				c.Store.Backend = StoreBackendPostgres
				c.Postgres.URL = ""
			},
			wantErr: "postgres.url",
		},
		{
			name: "redis without url",
			mutate: func(c *Config) {
				c.Store.Backend = StoreBackendRedis
				c.Redis.URL = ""
			},
			wantErr: "redis.url",
		},
		{
			name:   "memory backend",
			mutate: func(c *Config) { c.Store.Backend = StoreBackendMemory },
		},
		{
			name:    "influx enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "tls without files",
			mutate:  func(c *Config) { c.API.TLS.Enabled = true },
			wantErr: "api.tls",
		},
		{
			name:    "relative websocket path",
			mutate:  func(c *Config) { c.WebSocket.Path = "ws" },
			wantErr: "websocket.path",
		},
		{
			name:    "zero send buffer",
			mutate:  func(c *Config) { c.WebSocket.SendBuffer = 0 },
			wantErr: "websocket.send_buffer",
		},
		{
			name:    "zero write timeout",
			mutate:  func(c *Config) { c.WebSocket.WriteTimeout = 0 },
			wantErr: "websocket.write_timeout",
		},
		{
			name:    "zero queue",
			mutate:  func(c *Config) { c.Stream.QueueSize = 0 },
			wantErr: "stream.queue_size",
		},
		{
			name: "strict with broken pattern",
			mutate: func(c *Config) {
				c.Ingest.Strict = true
				c.Ingest.DevicePattern = "L(["
			},
			wantErr: "ingest.device_pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Store: StoreConfig{Timeout: 3},
	}

	assert.Equal(t, float64(30), cfg.API.GetReadTimeout().Seconds())
	assert.Equal(t, float64(45), cfg.API.GetWriteTimeout().Seconds())
	assert.Equal(t, float64(60), cfg.API.GetIdleTimeout().Seconds())
	assert.Equal(t, float64(3), cfg.GetStoreTimeout().Seconds())
}

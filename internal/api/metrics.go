package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/ychetra/demo-light/internal/stream"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Stream        stream.HubStats  `json:"stream"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	InfluxDB      *InfluxMetrics   `json:"influxdb,omitempty"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected        bool  `json:"connected"`
	ConnectionLosses int64 `json:"connection_losses"`
	Subscriptions    int   `json:"subscriptions"`
}

// InfluxMetrics contains telemetry writer statistics.
type InfluxMetrics struct {
	Connected bool  `json:"connected"`
	Written   int64 `json:"points_written"`
	Failed    int64 `json:"write_errors"`
}

// DatabaseMetrics contains SQLite connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns runtime, stream and dependency statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Stream: s.hub.Stats(),
	}

	if s.mqtt != nil {
		metrics.MQTT = &MQTTMetrics{
			Connected:        s.mqtt.IsConnected(),
			ConnectionLosses: s.mqtt.ConnectionLosses(),
			Subscriptions:    s.mqtt.SubscriptionCount(),
		}
	}

	if s.influx != nil {
		written, failed := s.influx.Stats()
		metrics.InfluxDB = &InfluxMetrics{
			Connected: s.influx.IsConnected(),
			Written:   written,
			Failed:    failed,
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

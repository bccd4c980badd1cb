// Lightbridge relays smart-switch telemetry from an MQTT broker to live
// websocket subscribers.
//
// Every status message published by a switch is persisted as the device's
// last known state and forwarded verbatim to every connected subscriber. A
// subscriber that connects is first sent the stored state of every device,
// then live traffic.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ychetra/demo-light/internal/api"
	"github.com/ychetra/demo-light/internal/device"
	"github.com/ychetra/demo-light/internal/infrastructure/config"
	"github.com/ychetra/demo-light/internal/infrastructure/influxdb"
	"github.com/ychetra/demo-light/internal/infrastructure/logging"
	"github.com/ychetra/demo-light/internal/infrastructure/mqtt"
	"github.com/ychetra/demo-light/internal/stream"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// statsInterval is how often stream counters are logged.
const statsInterval = 5 * time.Minute

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, blocks until ctx is cancelled and then shuts
// down in order: broker feed, stream hub, HTTP server, stores.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting lightbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Stores
	stores, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	defer stores.close()
	log.Info("device store ready", "backend", cfg.Store.Backend, "history", stores.history != nil)

	checks := map[string]api.HealthCheckFunc{}
	if stores.check != nil {
		checks["store"] = stores.check
	}

	// Telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		checks["influxdb"] = influxClient.HealthCheck
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Stream engine
	hub, err := buildHub(cfg, stores.store, influxClient, log)
	if err != nil {
		return err
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error { return hub.Run(hubCtx) })
	g.Go(func() error {
		logStreamStats(hubCtx, hub, log)
		return nil
	})
	stopStream := sync.OnceValue(func() error {
		stopHub()
		return g.Wait()
	})
	defer stopStream() //nolint:errcheck // error reported on the normal path

	// Broker feed
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	closeMQTT := sync.OnceFunc(func() {
		stopIngest(mqttClient, cfg.MQTT.Topic, log)
	})
	defer closeMQTT()

	mqttClient.SetLogger(log.With("component", "mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	checks["mqtt"] = mqttClient.HealthCheck

	if err := mqttClient.Subscribe(cfg.MQTT.Topic, byte(cfg.MQTT.QoS), feedHandler(hub)); err != nil {
		return fmt.Errorf("subscribing to %s: %w", cfg.MQTT.Topic, err)
	}
	log.Info("MQTT subscribed",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"topic", cfg.MQTT.Topic,
		"qos", cfg.MQTT.QoS,
	)

	// HTTP API and websocket endpoint
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log.With("component", "api"),
		Store:    stores.store,
		History:  stores.history,
		Hub:      hub,
		Checks:   checks,
		MQTT:     mqttClient,
		InfluxDB: influxClient,
		DB:       stores.db,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	closeMQTT()
	if err := stopStream(); err != nil {
		log.Error("stream hub stopped with error", "error", err)
	}
	if err := apiServer.Close(); err != nil {
		log.Error("error closing API server", "error", err)
	}

	log.Info("lightbridge stopped")
	return nil
}

func getConfigPath() string {
	if path := os.Getenv("LIGHTBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// ingestSource is the broker side of ingestion.
type ingestSource interface {
	Unsubscribe(filter string) error
	Close() error
}

// stopIngest unsubscribes from topic, then disconnects. No message reaches
// the hub once it returns.
func stopIngest(src ingestSource, topic string, log *logging.Logger) {
	log.Info("disconnecting from MQTT", "topic", topic)
	if err := src.Unsubscribe(topic); err != nil {
		log.Warn("unsubscribing from MQTT failed", "topic", topic, "error", err)
	}
	if err := src.Close(); err != nil {
		log.Error("error closing MQTT", "error", err)
	}
}

// buildHub assembles the stream engine over store. influxClient may be nil.
func buildHub(cfg *config.Config, store device.Store, influxClient *influxdb.Client, log *logging.Logger) (*stream.Hub, error) {
	streamLog := log.With("component", "stream")
	timeout := cfg.GetStoreTimeout()

	opts := []stream.IngestorOption{stream.WithStoreTimeout(timeout)}
	if influxClient != nil {
		opts = append(opts, stream.WithRecorder(influxClient))
	}
	if cfg.Ingest.Strict {
		v, err := device.NewValidator(cfg.Ingest.DevicePattern, cfg.Ingest.AllowedStatuses)
		if err != nil {
			return nil, fmt.Errorf("building ingest validator: %w", err)
		}
		opts = append(opts, stream.WithValidator(v))
		streamLog.Info("strict ingest validation enabled",
			"device_pattern", cfg.Ingest.DevicePattern,
			"allowed_statuses", cfg.Ingest.AllowedStatuses,
		)
	}

	registry := stream.NewRegistry()
	ingestor := stream.NewIngestor(store, stream.NewBroadcaster(registry, streamLog), streamLog, opts...)
	bootstrapper := stream.NewBootstrapper(store, timeout, streamLog)

	return stream.NewHub(stream.HubConfig{QueueSize: cfg.Stream.QueueSize}, registry, ingestor, bootstrapper, streamLog), nil
}

// feedHandler hands broker messages to the hub. A full queue or a stopped
// hub is already counted and logged there, so the message is acknowledged.
func feedHandler(hub *stream.Hub) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		err := hub.HandleMessage(topic, payload)
		if errors.Is(err, stream.ErrQueueFull) || errors.Is(err, stream.ErrHubClosed) {
			return nil
		}
		return err
	}
}

// logStreamStats reports stream counters until ctx is cancelled.
func logStreamStats(ctx context.Context, hub *stream.Hub, log *logging.Logger) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := hub.Stats()
			log.Info("stream stats",
				"subscribers", s.Subscribers,
				"queue_depth", s.QueueDepth,
				"dropped", s.Dropped,
				"accepted", s.Ingest.Accepted,
				"malformed", s.Ingest.Malformed,
				"rejected", s.Ingest.Rejected,
				"store_errors", s.Ingest.StoreErrors,
				"delivered", s.Broadcast.Delivered,
				"slow_drops", s.Broadcast.SlowDrops,
				"snapshot_frames", s.Bootstrap.Frames,
				"snapshot_dropped", s.Bootstrap.Dropped,
			)
		}
	}
}

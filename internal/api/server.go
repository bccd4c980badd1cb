package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ychetra/demo-light/internal/device"
	"github.com/ychetra/demo-light/internal/infrastructure/config"
	"github.com/ychetra/demo-light/internal/infrastructure/database"
	"github.com/ychetra/demo-light/internal/infrastructure/influxdb"
	"github.com/ychetra/demo-light/internal/infrastructure/logging"
	"github.com/ychetra/demo-light/internal/infrastructure/mqtt"
	"github.com/ychetra/demo-light/internal/stream"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthCheckFunc reports whether one dependency is usable.
type HealthCheckFunc func(ctx context.Context) error

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Store   device.Store
	Hub     *stream.Hub
	Version string

	// History is optional; without it the history and report endpoints
	// answer 501.
	History device.HistoryReader

	// Checks are run by the health endpoint, keyed by dependency name.
	Checks map[string]HealthCheckFunc

	// Optional, reported by the metrics endpoint when set.
	MQTT     *mqtt.Client
	InfluxDB *influxdb.Client
	DB       *database.DB
}

// Server is the HTTP API server.
//
// It owns the listener, routes and middleware. Websocket connections are
// handed to stream.Session and served until the hub or the server stops.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	store     device.Store
	history   device.HistoryReader
	hub       *stream.Hub
	checks    map[string]HealthCheckFunc
	mqtt      *mqtt.Client
	influx    *influxdb.Client
	db        *database.DB
	version   string
	startTime time.Time

	server   *http.Server
	listener net.Listener

	// ctx bounds websocket sessions; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("device store is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("stream hub is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		store:     deps.Store,
		history:   deps.History,
		hub:       deps.Hub,
		checks:    deps.Checks,
		mqtt:      deps.MQTT,
		influx:    deps.InfluxDB,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start binds the listener and serves HTTP in a background goroutine.
// A bind failure is returned; later serve errors are logged.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
				"websocket_path", s.wsCfg.Path,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String(), "websocket_path", s.wsCfg.Path)
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It ends websocket sessions, then waits up to 10 seconds for in-flight
// requests to complete before forcefully closing remaining connections.
func (s *Server) Close() error {
	s.cancel()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

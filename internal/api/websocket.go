package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ychetra/demo-light/internal/infrastructure/config"
	"github.com/ychetra/demo-light/internal/stream"
)

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// sessionConfig maps websocket settings (seconds) onto a stream session.
func sessionConfig(cfg config.WebSocketConfig) stream.SessionConfig {
	return stream.SessionConfig{
		SendBuffer:     cfg.SendBuffer,
		PingInterval:   time.Duration(cfg.PingInterval) * time.Second,
		PongTimeout:    time.Duration(cfg.PongTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.WriteTimeout) * time.Second,
		MaxMessageSize: int64(cfg.MaxMessageSize),
	}
}

// handleWebSocket upgrades the connection and serves it as a live
// subscriber until either side goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		writeBadRequest(w, "websocket upgrade required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err, "request_id", requestID(r.Context()))
		return
	}

	log := s.logger.With("remote_addr", r.RemoteAddr, "request_id", requestID(r.Context()))
	session := stream.NewSession(conn, sessionConfig(s.wsCfg), log)
	log.Info("websocket client connected", "subscriber", session.ID())

	if err := session.Serve(s.ctx, s.hub); err != nil {
		log.Warn("websocket session ended before joining", "subscriber", session.ID(), "error", err)
		return
	}
	log.Info("websocket client disconnected", "subscriber", session.ID())
}

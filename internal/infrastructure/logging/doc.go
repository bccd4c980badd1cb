// Package logging provides structured logging for lightbridge.
//
// It wraps log/slog so every component logs with the same handler,
// level filtering and default fields (service, version).
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("subscriber joined", "session_id", id)
//	hubLog := logger.With("component", "hub")
//
// Never log broker passwords, database URLs with credentials, or tokens.
package logging

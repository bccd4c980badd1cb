// Package api implements the lightbridge HTTP surface: a read-only REST API
// over the device state store and the websocket endpoint that live
// subscribers connect to.
//
// This package provides:
//   - GET endpoints for current device state, status history and daily reports
//   - health and metrics endpoints for monitoring
//   - the websocket upgrade, handing each connection to a stream.Session
//   - middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for deployments that terminate TLS in-process
//
// # Graceful Degradation
//
// The server runs without MQTT or InfluxDB. History and report endpoints
// answer 501 when the configured store keeps no history.
package api

package api

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ychetra/demo-light/internal/device"
)

// DeviceListResponse is the body of GET /api/v1/devices.
type DeviceListResponse struct {
	Devices []device.State `json:"devices"`
	Count   int            `json:"count"`
}

// HistoryResponse is the body of GET /api/v1/devices/{name}/history.
type HistoryResponse struct {
	DeviceName string                `json:"device_name"`
	Entries    []device.HistoryEntry `json:"entries"`
	Count      int                   `json:"count"`
}

// DailyReportResponse is the body of GET /api/v1/reports/daily.
type DailyReportResponse struct {
	Days   int                 `json:"days"`
	Totals []device.DailyCount `json:"totals"`
}

// handleListDevices returns the last known state of every device, sorted by name.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	states, err := s.store.All(r.Context())
	if err != nil {
		s.logger.Error("listing devices failed", "error", err, "request_id", requestID(r.Context()))
		writeInternalError(w, "failed to list devices")
		return
	}

	slices.SortFunc(states, func(a, b device.State) int {
		return strings.Compare(a.DeviceName, b.DeviceName)
	})
	if states == nil {
		states = []device.State{}
	}

	writeJSON(w, http.StatusOK, DeviceListResponse{Devices: states, Count: len(states)})
}

// handleGetDevice returns one device's state.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	st, err := s.store.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("getting device failed", "device_name", name, "error", err, "request_id", requestID(r.Context()))
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// handleDeviceHistory returns the most recent status changes of one device.
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotImplemented(w, "the configured store keeps no history")
		return
	}

	name := chi.URLParam(r, "name")
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	entries, err := s.history.History(r.Context(), name, limit)
	if err != nil {
		s.logger.Error("reading device history failed", "device_name", name, "error", err, "request_id", requestID(r.Context()))
		writeInternalError(w, "failed to read history")
		return
	}
	if entries == nil {
		entries = []device.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{DeviceName: name, Entries: entries, Count: len(entries)})
}

// handleDailyReport returns per-day status change counts.
func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotImplemented(w, "the configured store keeps no history")
		return
	}

	days, ok := queryInt(w, r, "days")
	if !ok {
		return
	}
	if days <= 0 {
		days = device.DefaultReportDays
	}
	days = min(days, device.MaxReportDays)

	totals, err := s.history.DailyUsage(r.Context(), days)
	if err != nil {
		s.logger.Error("building daily report failed", "days", days, "error", err, "request_id", requestID(r.Context()))
		writeInternalError(w, "failed to build report")
		return
	}
	if totals == nil {
		totals = []device.DailyCount{}
	}

	writeJSON(w, http.StatusOK, DailyReportResponse{Days: days, Totals: totals})
}

// queryInt parses an optional non-negative integer query parameter. A
// missing parameter yields 0. On a bad value it writes 400 and returns false.
func queryInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, key+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

package device

import (
	"strings"
	"time"
)

// Event is one accepted message from the broker feed.
type Event struct {
	DeviceName string
	Status     string
	ReceivedAt time.Time
	Topic      string

	// Raw is the payload exactly as received. It is what live subscribers get.
	Raw []byte
}

// State is the last known status of one device.
type State struct {
	DeviceName string    `json:"device_name"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HistoryEntry is one row of the append-only status log.
type HistoryEntry struct {
	ID         int64     `json:"id"`
	DeviceName string    `json:"device_name"`
	Status     string    `json:"status"`
	RecordedAt time.Time `json:"recorded_at"`
}

// DailyCount summarises the status log for one UTC day.
type DailyCount struct {
	// Day is formatted YYYY-MM-DD.
	Day     string `json:"day"`
	Changes int    `json:"changes"`
	On      int    `json:"on"`
	Off     int    `json:"off"`
}

// StatusKey returns the payload key that carries a device's status.
func StatusKey(deviceName string) string {
	return strings.ToLower(deviceName)
}

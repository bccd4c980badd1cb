package influxdb

import (
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement name for switch status points.
const measurementSwitchStatus = "switch_status"

// RecordStatus queues one switch_status point. It never blocks on the
// network and is a no-op once the client is closed.
func (c *Client) RecordStatus(deviceName, status string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statusPoint(deviceName, status, at))
	c.written.Add(1)
}

// statusPoint builds the point for one status change. The numeric "on"
// field lets dashboards sum switched-on time without string matching.
func statusPoint(deviceName, status string, at time.Time) *write.Point {
	on := 0
	if strings.EqualFold(status, "on") {
		on = 1
	}

	return write.NewPoint(
		measurementSwitchStatus,
		map[string]string{"device_name": deviceName},
		map[string]interface{}{
			"status": strings.ToLower(status),
			"on":     on,
		},
		at,
	)
}

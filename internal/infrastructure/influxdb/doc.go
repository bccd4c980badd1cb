// Package influxdb records switch status telemetry in InfluxDB v2.
//
// When influxdb.enabled is true, every accepted event becomes one point:
//
//	switch_status,device_name=L1R1_B1 status="on",on=1i
//
// Writes go through the client's non-blocking batched WriteAPI; failures
// arrive asynchronously on the callback set with SetOnError. The stream
// engine never waits on InfluxDB.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { logger.Warn("influx write", "error", err) })
package influxdb

// Package influxdb mirrors ingested telemetry into InfluxDB.
//
// The relational store is the system of record; this package only feeds
// time-series dashboards. It wraps influxdb-client-go v2 with connection
// management, batched non-blocking writes and health checks.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // mirroring is optional
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) { log.Warn("influx write failed", "error", err) })
//	_ = client.WritePoints(points...)
//
// Writes are batched according to config.yaml (batch_size, flush_interval).
package influxdb

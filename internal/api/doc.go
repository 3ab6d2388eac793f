// Package api serves the operational HTTP endpoint of AirGuard Core.
//
// It is deliberately small and read-only:
//   - GET /api/v1/health   component health (database, broker, subscriber)
//   - GET /api/v1/metrics  runtime and pipeline snapshot as JSON
//   - GET /api/v1/devices  registered gateways
//   - GET /metrics         Prometheus exposition
//
// The server binds to the ops host and port from config, which defaults to
// loopback. It never writes telemetry; ingestion runs in package ingest.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

// Package device keeps the registry of gateways that have reported telemetry.
//
// A device row is created the first time a gateway is seen and is never
// updated by ingestion afterwards. Registration is an insert-if-absent that
// runs inside the caller's transaction: a concurrent first insert that loses
// the race hits the primary key and is treated as "already registered".
//
// # Identity
//
// Device IDs are name-based UUIDs (version 5) of the gateway identifier, so
// the same gatewayId always maps to the same row without a lookup table and
// two gateways whose names differ only in punctuation never collide. The
// human-readable slug is kept alongside for dashboards.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//
//	tx, _ := db.BeginTx(ctx, nil)
//	created, err := repo.Register(ctx, tx, device.NewGateway("Nodo Central 01", now))
package device

// Package database provides SQLite connectivity for the AirGuard telemetry store.
//
// This package manages:
//   - Database connection with WAL mode for concurrent dashboard reads
//   - Create-if-absent schema scripts tracked in schema_migrations
//   - Single-connection pooling and lifecycle management
//   - Constraint-violation classification for insert-if-absent writes
//
// All queries use parameterised statements. The database file is
// chmod 0600.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.EnsureSchema(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
package database

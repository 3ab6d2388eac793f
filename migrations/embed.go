// Package migrations embeds the telemetry store DDL into the binary.
//
// Scripts are named YYYYMMDD_HHMMSS_description.sql and applied in version
// order by database.DB.EnsureSchema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

package ingest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/airguard-core/internal/device"
	"github.com/nerrad567/airguard-core/internal/infrastructure/database"
	"github.com/nerrad567/airguard-core/internal/telemetry"
	"github.com/nerrad567/airguard-core/migrations"
)

var siteZone = time.FixedZone("CEST", 2*60*60)

// openStore opens an in-memory database with the production schema.
func openStore(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.EnsureSchema(ctx, migrations.FS))
	return db
}

func newTestDispatcher(t *testing.T, opts DispatcherOptions) (*Dispatcher, *database.DB) {
	t.Helper()
	db := openStore(t)
	return NewDispatcher(db.DB, device.NewSQLiteRepository(db.DB), opts), db
}

// sampleMessage returns a fully populated message for gatewayID.
func sampleMessage(gatewayID string) telemetry.GatewayMessage {
	received := time.Date(2026, 6, 1, 10, 0, 5, 0, time.UTC)
	manual := false
	return telemetry.GatewayMessage{
		GatewayID: gatewayID,
		Timestamp: telemetry.Timestamp{
			Time: time.Date(2026, 6, 1, 12, 0, 0, 0, siteZone),
			Kind: telemetry.TimestampWallClock,
			Raw:  "01/06/2026 12:00:00",
		},
		ReceivedAt: received,
		Sensor: telemetry.SensorPayload{
			PPM: 412.5, Ratio: 0.83, Raw: 1850, Status: "NORMAL", Threshold: 600,
		},
		Control: telemetry.ControlPayload{
			Automatic: true, On: true, Transition: false, Speed: 50, ManualActive: &manual,
		},
		Actuator: telemetry.ActuatorStatus{
			Pin: 27, Speed: 50, Target: 50, On: "SI", Transition: "NO", PWM: 128,
		},
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// tableCounts returns row counts for every telemetry table.
func tableCounts(t *testing.T, db *sql.DB) map[string]int {
	t.Helper()
	counts := make(map[string]int)
	for _, table := range []string{"devices", "sensor_readings", "control_states", "actuators"} {
		counts[table] = countRows(t, db, table)
	}
	return counts
}

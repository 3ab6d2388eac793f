package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nerrad567/airguard-core/internal/infrastructure/database"
)

// Repository defines read access to registered devices.
type Repository interface {
	// GetByID retrieves a device by its derived identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// GetByGatewayID retrieves a device by the gateway identifier it
	// reports on the wire.
	GetByGatewayID(ctx context.Context, gatewayID string) (*Device, error)

	// List retrieves all devices ordered by creation time.
	List(ctx context.Context) ([]Device, error)

	// Count returns the number of registered devices.
	Count(ctx context.Context) (int, error)
}

// DBTX is the subset of *sql.DB and *sql.Tx the repository writes through.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectDevice = `
	SELECT id, gateway_id, name, slug, is_gateway, has_sensor, has_actuator,
		created_at, updated_at
	FROM devices`

// GetByID retrieves a device by its derived identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	return r.getOne(ctx, selectDevice+" WHERE id = ?", id)
}

// GetByGatewayID retrieves a device by its wire gateway identifier.
func (r *SQLiteRepository) GetByGatewayID(ctx context.Context, gatewayID string) (*Device, error) {
	return r.getOne(ctx, selectDevice+" WHERE gateway_id = ?", gatewayID)
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDevice+" ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Count returns the number of registered devices.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return n, nil
}

// Register inserts d if no device with its ID exists yet, using q so the
// caller can make registration part of a larger transaction. It reports
// whether a row was created.
//
// A primary key or unique violation on insert means another writer
// registered the same gateway first; that is not an error.
func (r *SQLiteRepository) Register(ctx context.Context, q DBTX, d *Device) (bool, error) {
	if err := d.Validate(); err != nil {
		return false, err
	}

	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM devices WHERE id = ?", d.ID).Scan(&one)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("looking up device: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO devices (
			id, gateway_id, name, slug, is_gateway, has_sensor, has_actuator,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.GatewayID, d.Name, d.Slug,
		boolToInt(d.IsGateway), boolToInt(d.HasSensor), boolToInt(d.HasActuator),
		database.FormatTime(d.CreatedAt),
		database.FormatTime(d.UpdatedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("inserting device: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, arg any) (*Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return d, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var isGateway, hasSensor, hasActuator int
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&d.ID, &d.GatewayID, &d.Name, &d.Slug,
		&isGateway, &hasSensor, &hasActuator,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	d.IsGateway = isGateway != 0
	d.HasSensor = hasSensor != 0
	d.HasActuator = hasActuator != 0

	var err error
	if d.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &d, nil
}

// boolToInt converts a bool to SQLite integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

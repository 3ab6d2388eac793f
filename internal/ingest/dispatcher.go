package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nerrad567/airguard-core/internal/device"
	"github.com/nerrad567/airguard-core/internal/infrastructure/database"
	"github.com/nerrad567/airguard-core/internal/telemetry"
)

// DefaultActuatorName is stored on actuator rows when no name is configured.
const DefaultActuatorName = "ventilador"

// Logger is the logging surface the pipeline needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// ActuatorName is the logical name stored on every actuator row.
	ActuatorName string

	// Sinks receive each message after its transaction commits.
	Sinks []Sink

	Logger  Logger
	Metrics *Metrics
}

// Result identifies the rows written for one message.
type Result struct {
	DeviceID       string
	DeviceCreated  bool
	ReadingID      int64
	ControlStateID int64
	ActuatorID     int64
}

// Dispatcher persists normalised messages. Each message is written as one
// transaction spanning devices, sensor_readings, control_states and
// actuators: either every row lands or none does.
type Dispatcher struct {
	db           *sql.DB
	devices      *device.SQLiteRepository
	actuatorName string
	sinks        []Sink
	logger       Logger
	metrics      *Metrics
}

// NewDispatcher creates a Dispatcher writing through db.
func NewDispatcher(db *sql.DB, devices *device.SQLiteRepository, opts DispatcherOptions) *Dispatcher {
	name := opts.ActuatorName
	if name == "" {
		name = DefaultActuatorName
	}
	return &Dispatcher{
		db:           db,
		devices:      devices,
		actuatorName: name,
		sinks:        opts.Sinks,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
}

// Dispatch writes msg in a single transaction and then hands it to the
// post-commit sinks. Any database failure rolls back and is returned as a
// *StorageError. Sink failures are logged only; the message is already
// stored.
func (d *Dispatcher) Dispatch(ctx context.Context, msg telemetry.GatewayMessage) (Result, error) {
	res, err := d.store(ctx, msg)
	if err != nil {
		return Result{}, err
	}

	if res.DeviceCreated {
		d.metrics.recordDeviceRegistered()
		if d.logger != nil {
			d.logger.Info("device registered",
				"gateway_id", msg.GatewayID,
				"device_id", res.DeviceID,
			)
		}
	}

	for _, sink := range d.sinks {
		if err := sink.Write(ctx, msg, res); err != nil && d.logger != nil {
			d.logger.Warn("post-commit sink failed",
				"sink", sink.Name(),
				"gateway_id", msg.GatewayID,
				"error", err,
			)
		}
	}

	return res, nil
}

func (d *Dispatcher) store(ctx context.Context, msg telemetry.GatewayMessage) (Result, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, &StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	dev := device.NewGateway(msg.GatewayID, msg.ReceivedAt)
	created, err := d.devices.Register(ctx, tx, dev)
	if err != nil {
		return Result{}, &StorageError{Op: "register device", Err: err}
	}
	res := Result{DeviceID: dev.ID, DeviceCreated: created}

	recordedAt := database.FormatTime(msg.Timestamp.Time)

	res.ReadingID, err = insertReading(ctx, tx, dev.ID, recordedAt, msg)
	if err != nil {
		return Result{}, &StorageError{Op: "insert reading", Err: err}
	}

	res.ControlStateID, err = insertControlState(ctx, tx, dev.ID, recordedAt, msg.Control)
	if err != nil {
		return Result{}, &StorageError{Op: "insert control state", Err: err}
	}

	res.ActuatorID, err = insertActuator(ctx, tx, res.ControlStateID, d.actuatorName, msg.Actuator)
	if err != nil {
		return Result{}, &StorageError{Op: "insert actuator", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return Result{}, &StorageError{Op: "commit", Err: err}
	}

	return res, nil
}

func insertReading(ctx context.Context, tx *sql.Tx, deviceID, recordedAt string, msg telemetry.GatewayMessage) (int64, error) {
	var raw sql.NullString
	if msg.Timestamp.Raw != "" {
		raw = sql.NullString{String: msg.Timestamp.Raw, Valid: true}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO sensor_readings (
			device_id, recorded_at, ppm, ratio, raw, status, threshold,
			timestamp_kind, timestamp_raw, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deviceID, recordedAt,
		msg.Sensor.PPM, msg.Sensor.Ratio, msg.Sensor.Raw,
		msg.Sensor.Status, msg.Sensor.Threshold,
		string(msg.Timestamp.Kind), raw,
		database.FormatTime(msg.ReceivedAt),
	)
	if err != nil {
		return 0, err
	}
	return lastInsertID(result)
}

func insertControlState(ctx context.Context, tx *sql.Tx, deviceID, recordedAt string, c telemetry.ControlPayload) (int64, error) {
	var manual sql.NullInt64
	if c.ManualActive != nil {
		manual = sql.NullInt64{Int64: int64(boolToInt(*c.ManualActive)), Valid: true}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO control_states (
			device_id, recorded_at, automatic, power_on, transition, speed, manual_active
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		deviceID, recordedAt,
		boolToInt(c.Automatic), boolToInt(c.On), boolToInt(c.Transition),
		c.Speed, manual,
	)
	if err != nil {
		return 0, err
	}
	return lastInsertID(result)
}

func insertActuator(ctx context.Context, tx *sql.Tx, controlStateID int64, name string, a telemetry.ActuatorStatus) (int64, error) {
	var pwmMax sql.NullInt64
	if a.PWMMax != nil {
		pwmMax = sql.NullInt64{Int64: int64(*a.PWMMax), Valid: true}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO actuators (
			control_state_id, name, pin, speed, target, power_on, transition, pwm, pwm_max
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		controlStateID, name,
		a.Pin, a.Speed, a.Target, a.On, a.Transition, a.PWM, pwmMax,
	)
	if err != nil {
		return 0, err
	}
	return lastInsertID(result)
}

func lastInsertID(result sql.Result) (int64, error) {
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}
	if id <= 0 {
		return 0, errors.New("no row id returned")
	}
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

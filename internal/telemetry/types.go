package telemetry

import "time"

// TimestampKind records how a message timestamp was interpreted.
type TimestampKind string

const (
	// TimestampIngest means the message carried no timestamp; the ingestion
	// time was used.
	TimestampIngest TimestampKind = "ingest"

	// TimestampBootMillis means the message carried milliseconds since
	// device boot. Time is the ingestion time; BootMillis keeps the value.
	TimestampBootMillis TimestampKind = "boot_millis"

	// TimestampEpochMillis means the message carried Unix milliseconds.
	TimestampEpochMillis TimestampKind = "epoch_millis"

	// TimestampISO8601 means an ISO-8601 style string was parsed.
	TimestampISO8601 TimestampKind = "iso8601"

	// TimestampWallClock means a strict DD/MM/YYYY HH:MM:SS string was
	// parsed in the site timezone.
	TimestampWallClock TimestampKind = "wall_clock"

	// TimestampFallback means a timestamp was present but unusable; the
	// ingestion time was substituted.
	TimestampFallback TimestampKind = "fallback"
)

// Timestamp is a resolved message time plus its provenance.
// Time is never the zero value.
type Timestamp struct {
	Time time.Time
	Kind TimestampKind

	// Raw is the wire value as text, empty when absent.
	Raw string

	// BootMillis is set for TimestampBootMillis only.
	BootMillis int64
}

// Approximate reports whether Time is the ingestion time rather than a
// device-reported instant. Approximate timestamps are not comparable
// across devices.
func (t Timestamp) Approximate() bool {
	switch t.Kind {
	case TimestampIngest, TimestampBootMillis, TimestampFallback:
		return true
	default:
		return false
	}
}

// SensorPayload is one gas sensor sample.
type SensorPayload struct {
	PPM       float64
	Ratio     float64
	Raw       int
	Status    string // NORMAL or ALERTA by producer convention
	Threshold float64
}

// ControlPayload is the extractor control snapshot reported with a sample.
type ControlPayload struct {
	Automatic  bool
	On         bool
	Transition bool
	Speed      int

	// ManualActive is only reported by newer firmware.
	ManualActive *bool
}

// ActuatorStatus is the fan actuator state.
//
// On and Transition hold the producer's tokens verbatim (normally SI/NO).
type ActuatorStatus struct {
	Pin        int
	Speed      int
	Target     int
	On         string
	Transition string
	PWM        int
	PWMMax     *int
}

// GatewayMessage is the canonical form of one inbound telemetry message.
type GatewayMessage struct {
	GatewayID  string
	Timestamp  Timestamp
	ReceivedAt time.Time
	Sensor     SensorPayload
	Control    ControlPayload
	Actuator   ActuatorStatus
}

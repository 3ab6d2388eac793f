package ingest

import (
	"context"
	"maps"

	"github.com/nerrad567/airguard-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/airguard-core/internal/telemetry"
)

// Sink receives a message after it has been committed to the relational
// store. Sinks must not block for long; they run on the worker goroutine.
type Sink interface {
	Name() string
	Write(ctx context.Context, msg telemetry.GatewayMessage, res Result) error
}

// Measurement names written by InfluxSink.
const (
	MeasurementGasReading     = "gas_reading"
	MeasurementExtractorState = "extractor_state"
)

// PointWriter queues time-series points. Implemented by *influxdb.Client.
type PointWriter interface {
	WritePoints(points ...influxdb.Point) error
}

// InfluxSink mirrors each stored message to InfluxDB as one gas_reading
// and one extractor_state point.
type InfluxSink struct {
	writer PointWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{writer: w}
}

// Name implements Sink.
func (s *InfluxSink) Name() string { return "influxdb" }

// Write implements Sink.
func (s *InfluxSink) Write(_ context.Context, msg telemetry.GatewayMessage, _ Result) error {
	return s.writer.WritePoints(Points(msg)...)
}

// Points maps a message to its InfluxDB points. Both carry the message
// time; the timestamp kind is tagged so approximate times can be filtered.
func Points(msg telemetry.GatewayMessage) []influxdb.Point {
	tags := map[string]string{
		"gateway_id":     msg.GatewayID,
		"timestamp_kind": string(msg.Timestamp.Kind),
	}

	reading := influxdb.Point{
		Measurement: MeasurementGasReading,
		Tags:        withTag(tags, "status", msg.Sensor.Status),
		Fields: map[string]any{
			"ppm":       msg.Sensor.PPM,
			"ratio":     msg.Sensor.Ratio,
			"raw":       msg.Sensor.Raw,
			"threshold": msg.Sensor.Threshold,
		},
		Time: msg.Timestamp.Time,
	}

	fields := map[string]any{
		"automatic":    msg.Control.Automatic,
		"on":           msg.Control.On,
		"transition":   msg.Control.Transition,
		"speed":        msg.Control.Speed,
		"target":       msg.Actuator.Target,
		"pwm":          msg.Actuator.PWM,
		"actuator_on":  msg.Actuator.On,
		"actuator_pin": msg.Actuator.Pin,

		"actuator_speed":      msg.Actuator.Speed,
		"actuator_transition": msg.Actuator.Transition,
	}
	if msg.Control.ManualActive != nil {
		fields["manual_active"] = *msg.Control.ManualActive
	}
	if msg.Actuator.PWMMax != nil {
		fields["pwm_max"] = *msg.Actuator.PWMMax
	}

	state := influxdb.Point{
		Measurement: MeasurementExtractorState,
		Tags:        tags,
		Fields:      fields,
		Time:        msg.Timestamp.Time,
	}

	return []influxdb.Point{reading, state}
}

func withTag(tags map[string]string, k, v string) map[string]string {
	out := maps.Clone(tags)
	out[k] = v
	return out
}

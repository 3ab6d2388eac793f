package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/airguard-core/internal/infrastructure/influxdb"
)

type fakePointWriter struct {
	points []influxdb.Point
	err    error
}

func (w *fakePointWriter) WritePoints(points ...influxdb.Point) error {
	w.points = append(w.points, points...)
	return w.err
}

func TestPoints(t *testing.T) {
	msg := sampleMessage("gw-1")
	pwmMax := 255
	msg.Actuator.PWMMax = &pwmMax
	msg.Actuator.Speed = 40
	msg.Actuator.Transition = "SI"

	points := Points(msg)
	require.Len(t, points, 2)

	reading, state := points[0], points[1]

	assert.Equal(t, MeasurementGasReading, reading.Measurement)
	assert.Equal(t, map[string]string{
		"gateway_id":     "gw-1",
		"timestamp_kind": "wall_clock",
		"status":         "NORMAL",
	}, reading.Tags)
	assert.Equal(t, 412.5, reading.Fields["ppm"])
	assert.Equal(t, 1850, reading.Fields["raw"])
	assert.True(t, reading.Time.Equal(msg.Timestamp.Time))

	assert.Equal(t, MeasurementExtractorState, state.Measurement)
	assert.NotContains(t, state.Tags, "status")
	assert.Equal(t, true, state.Fields["automatic"])
	assert.Equal(t, "SI", state.Fields["actuator_on"])
	assert.Equal(t, 50, state.Fields["speed"])
	assert.Equal(t, 40, state.Fields["actuator_speed"])
	assert.Equal(t, "SI", state.Fields["actuator_transition"])
	assert.Equal(t, false, state.Fields["manual_active"])
	assert.Equal(t, 255, state.Fields["pwm_max"])

	for _, p := range points {
		assert.NoError(t, p.Validate())
	}
}

func TestPoints_OmitsUnreportedFields(t *testing.T) {
	msg := sampleMessage("gw-1")
	msg.Control.ManualActive = nil

	state := Points(msg)[1]
	assert.NotContains(t, state.Fields, "manual_active")
	assert.NotContains(t, state.Fields, "pwm_max")
}

func TestInfluxSink_Write(t *testing.T) {
	w := &fakePointWriter{}
	sink := NewInfluxSink(w)

	require.NoError(t, sink.Write(context.Background(), sampleMessage("gw-1"), Result{}))
	assert.Equal(t, "influxdb", sink.Name())
	assert.Len(t, w.points, 2)

	w.err = influxdb.ErrNotConnected
	err := sink.Write(context.Background(), sampleMessage("gw-1"), Result{})
	assert.True(t, errors.Is(err, influxdb.ErrNotConnected))
}

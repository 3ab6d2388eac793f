package ingest

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.recordReceived("gas/datos")
	m.recordProcessed(OutcomeStored, 2*time.Millisecond)
	m.recordProcessed(OutcomeDecodeError, time.Millisecond)
	m.recordDeviceRegistered()
	m.setQueueDepth(3)
	m.setState(StateSubscribed)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.received.WithLabelValues("gas/datos")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.processed.WithLabelValues("stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.processed.WithLabelValues("decode_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.devicesRegistered))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionState.WithLabelValues("subscribed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connectionState.WithLabelValues("connected")))

	count, err := testutil.GatherAndCount(reg, "airguard_ingest_processing_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.recordReceived("t")
		m.recordProcessed(OutcomeStored, time.Second)
		m.recordDeviceRegistered()
		m.setQueueDepth(1)
		m.setState(StateConnected)
	})
}

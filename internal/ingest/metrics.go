package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the ingestion pipeline.
// A nil *Metrics records nothing.
type Metrics struct {
	received          *prometheus.CounterVec   // by topic
	processed         *prometheus.CounterVec   // by outcome
	devicesRegistered prometheus.Counter       // first-seen gateways
	dispatchDuration  *prometheus.HistogramVec // by outcome
	queueDepth        prometheus.Gauge
	connectionState   *prometheus.GaugeVec // 1 for the current state
}

// NewMetrics creates the pipeline collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airguard",
			Subsystem: "ingest",
			Name:      "messages_received_total",
			Help:      "Messages delivered by the broker",
		}, []string{"topic"}),

		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airguard",
			Subsystem: "ingest",
			Name:      "messages_processed_total",
			Help:      "Messages processed, by outcome",
		}, []string{"outcome"}),

		devicesRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airguard",
			Subsystem: "ingest",
			Name:      "devices_registered_total",
			Help:      "Gateways registered on first sight",
		}),

		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "airguard",
			Subsystem: "ingest",
			Name:      "processing_duration_seconds",
			Help:      "Time from dequeue to commit or rejection",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"outcome"}),

		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "airguard",
			Subsystem: "ingest",
			Name:      "queue_depth",
			Help:      "Messages waiting for the worker",
		}),

		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "airguard",
			Subsystem: "ingest",
			Name:      "subscriber_state",
			Help:      "Subscriber connection state (1 = current)",
		}, []string{"state"}),
	}

	collectors := []prometheus.Collector{
		m.received, m.processed, m.devicesRegistered,
		m.dispatchDuration, m.queueDepth, m.connectionState,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) recordReceived(topic string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(topic).Inc()
}

func (m *Metrics) recordProcessed(outcome Outcome, duration time.Duration) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(string(outcome)).Inc()
	m.dispatchDuration.WithLabelValues(string(outcome)).Observe(duration.Seconds())
}

func (m *Metrics) recordDeviceRegistered() {
	if m == nil {
		return
	}
	m.devicesRegistered.Inc()
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) setState(current State) {
	if m == nil {
		return
	}
	for _, s := range allStates {
		v := 0.0
		if s == current {
			v = 1
		}
		m.connectionState.WithLabelValues(string(s)).Set(v)
	}
}

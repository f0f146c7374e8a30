package metrics

import (
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flare"

const (
	ReasonBufferOverflow = "buffer_overflow"
	ReasonQueueFull      = "queue_full"
	ReasonClosed         = "closed"
)

type Metrics struct {
	EventsCaptured  prometheus.Counter
	TracesCompleted prometheus.Counter
	BatchesSent     *prometheus.CounterVec
	BatchesFailed   *prometheus.CounterVec
	ItemsDropped    *prometheus.CounterVec
}

// NewMetrics builds the client counters without registering them.
func NewMetrics() *Metrics {
	m := &Metrics{
		EventsCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_captured_total",
			Help:      "Error events accepted into the event buffer.",
		}),
		TracesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traces_completed_total",
			Help:      "Traces ended and accepted into the trace buffer.",
		}),
		BatchesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_sent_total",
			Help:      "Batches acknowledged by the collector.",
		}, []string{"kind"}),
		BatchesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_failed_total",
			Help:      "Batches discarded after a failed delivery attempt.",
		}, []string{"kind"}),
		ItemsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_dropped_total",
			Help:      "Events or traces discarded before a delivery attempt.",
		}, []string{"kind", "reason"}),
	}
	return m
}

// Register adds the counters to reg. On failure the counters registered so far
// are removed again, so the caller can retry with another registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{m.EventsCaptured, m.TracesCompleted, m.BatchesSent, m.BatchesFailed, m.ItemsDropped}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			for _, registered := range collectors[:i] {
				reg.Unregister(registered)
			}
			return fmt.Errorf("failed to register telemetry metrics: %w", err)
		}
	}
	return nil
}

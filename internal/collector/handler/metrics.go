package handler

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeAccepted       = "accepted"
	OutcomeBadSignature   = "bad_signature"
	OutcomeUnknownProject = "unknown_project"
	OutcomeMalformed      = "malformed"
	OutcomePublishFailed  = "publish_failed"
)

type CollectorMetrics struct {
	BatchesReceived *prometheus.CounterVec
	SinkFailures    *prometheus.CounterVec
}

func NewCollectorMetrics(reg prometheus.Registerer) *CollectorMetrics {
	m := &CollectorMetrics{
		BatchesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flare",
			Subsystem: "collector",
			Name:      "batches_received_total",
			Help:      "Batches received by the collector, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flare",
			Subsystem: "collector",
			Name:      "sink_failures_total",
			Help:      "Published batches a sink failed to store or forward, by topic.",
		}, []string{"topic"}),
	}
	if reg != nil {
		reg.MustRegister(m.BatchesReceived, m.SinkFailures)
	}
	return m
}

func (m *CollectorMetrics) observe(kind string, outcome string) {
	m.BatchesReceived.WithLabelValues(kind, outcome).Inc()
}

// SinkFailed counts a batch that a subscriber on topic could not handle.
func (m *CollectorMetrics) SinkFailed(topic string) {
	m.SinkFailures.WithLabelValues(topic).Inc()
}

// Package metrics exposes Prometheus instruments for the approval engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "approval"

var (
	// Transitions counts committed status changes.
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total number of committed document status transitions",
		},
		[]string{"from", "to"},
	)

	// Escalations counts fired stage escalations by action taken.
	Escalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Total number of stage escalations",
		},
		[]string{"action"}, // action: auto_advance, alert
	)

	// RejectedOperations counts lifecycle operations refused by the engine.
	RejectedOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_operations_total",
			Help:      "Total number of lifecycle operations refused",
		},
		[]string{"event", "reason"}, // reason: validation, invalid_transition, not_found, error
	)

	SynthesizedSteps = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesized_steps",
			Help:      "Number of steps in synthesized workflows",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)

	registry = prometheus.NewRegistry()
)

func init() {
	registry.MustRegister(
		Transitions,
		Escalations,
		RejectedOperations,
		SynthesizedSteps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func Registry() *prometheus.Registry {
	return registry
}

func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func RecordTransition(from, to string) {
	Transitions.WithLabelValues(from, to).Inc()
}

func RecordEscalation(action string) {
	Escalations.WithLabelValues(action).Inc()
}

func RecordRejected(event, reason string) {
	RejectedOperations.WithLabelValues(event, reason).Inc()
}

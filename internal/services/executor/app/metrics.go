package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts executor outcomes per action kind.
type Metrics struct {
	completed *prometheus.CounterVec
	retried   *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewMetrics registers executor counters on the given registerer. A nil
// registerer uses the default one.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)
	return &Metrics{
		completed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "executor_requests_completed_total",
			Help: "Action requests that finished their external side effect.",
		}, []string{"kind"}),
		retried: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "executor_request_retries_total",
			Help: "Transient failures that sent a request back to the queue.",
		}, []string{"kind"}),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "executor_requests_failed_total",
			Help: "Action requests that failed terminally.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) recordCompleted(kind string) {
	if m != nil {
		m.completed.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) recordRetried(kind string) {
	if m != nil {
		m.retried.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) recordFailed(kind string) {
	if m != nil {
		m.failed.WithLabelValues(kind).Inc()
	}
}

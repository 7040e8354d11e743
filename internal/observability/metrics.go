// Package observability holds the console's prometheus instrumentation.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	upstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "callback_console",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Number of calls to the CRM backend grouped by operation and outcome.",
	}, []string{"operation", "outcome"})

	upstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "callback_console",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Latency of calls to the CRM backend per operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	forcedLogouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "callback_console",
		Subsystem: "session",
		Name:      "forced_logouts_total",
		Help:      "Number of sessions cleared because the backend returned 401.",
	})

	openEditorForms = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "callback_console",
		Subsystem: "editor",
		Name:      "open_forms",
		Help:      "Number of editor forms currently open.",
	})
)

func init() {
	prometheus.MustRegister(upstreamRequests, upstreamDuration, forcedLogouts, openEditorForms)
}

// RecordUpstreamRequest tracks one completed call to the CRM backend.
func RecordUpstreamRequest(operation, outcome string, elapsed time.Duration) {
	upstreamRequests.WithLabelValues(operation, outcome).Inc()
	upstreamDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordForcedLogout tracks a session cleared by an upstream 401.
func RecordForcedLogout() {
	forcedLogouts.Inc()
}

// EditorFormOpened bumps the open-forms gauge.
func EditorFormOpened() {
	openEditorForms.Inc()
}

// EditorFormClosed decrements the open-forms gauge on submit, cancel or expiry.
func EditorFormClosed() {
	openEditorForms.Dec()
}

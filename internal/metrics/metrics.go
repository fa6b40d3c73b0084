// Package metrics exposes leakwatch's Prometheus instrumentation,
// following the naming conventions of the teacher repository's
// observability metrics packages.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeakMetrics groups the counters and gauges a Detector reports
// through. The zero value is not usable; construct with New.
type LeakMetrics struct {
	activeTrackers   prometheus.Gauge
	reportsTotal     *prometheus.CounterVec
	droppedRecords   prometheus.Counter
	duplicateReports prometheus.Counter
}

// New registers leakwatch's metrics against reg and returns the
// bundle. Pass prometheus.NewRegistry() in tests to avoid colliding
// with the global default registry across parallel test runs.
func New(reg prometheus.Registerer) *LeakMetrics {
	m := &LeakMetrics{
		activeTrackers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "leakwatch",
			Name:      "active_trackers",
			Help:      "Number of resources currently under leak tracking.",
		}),
		reportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leakwatch",
			Name:      "reports_total",
			Help:      "Leak reports emitted, labeled by whether an access trail was captured.",
		}, []string{"traced"}),
		droppedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leakwatch",
			Name:      "dropped_records_total",
			Help:      "Access records discarded by the back-off algorithm instead of being linked in.",
		}),
		duplicateReports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leakwatch",
			Name:      "duplicate_reports_total",
			Help:      "Leak reports suppressed because an identical trail was already reported.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.activeTrackers, m.reportsTotal, m.droppedRecords, m.duplicateReports)
	}
	return m
}

// TrackerOpened increments the active-tracker gauge. Safe to call on
// a nil *LeakMetrics (metrics are optional).
func (m *LeakMetrics) TrackerOpened() {
	if m == nil {
		return
	}
	m.activeTrackers.Inc()
}

// TrackerClosed decrements the active-tracker gauge.
func (m *LeakMetrics) TrackerClosed() {
	if m == nil {
		return
	}
	m.activeTrackers.Dec()
}

// ReportEmitted records one leak report, labeled by whether it
// carried a captured access trail.
func (m *LeakMetrics) ReportEmitted(traced bool) {
	if m == nil {
		return
	}
	label := "false"
	if traced {
		label = "true"
	}
	m.reportsTotal.WithLabelValues(label).Inc()
}

// RecordDropped increments the dropped-records counter.
func (m *LeakMetrics) RecordDropped() {
	if m == nil {
		return
	}
	m.droppedRecords.Inc()
}

// ReportDuplicated increments the duplicate-reports counter.
func (m *LeakMetrics) ReportDuplicated() {
	if m == nil {
		return
	}
	m.duplicateReports.Inc()
}

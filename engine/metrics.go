package engine

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks rebuild activity on a dedicated registry so two engines in
// one process do not collide on metric registration.
type Metrics struct {
	registry *prometheus.Registry

	rebuilds     prometheus.Counter
	failures     prometheus.Counter
	duration     prometheus.Histogram
	version      prometheus.Gauge
	coverage     *prometheus.GaugeVec
	uncovered    *prometheus.GaugeVec
	invalidRefs  *prometheus.GaugeVec
	scannedFiles *prometheus.GaugeVec
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spectrace_rebuilds_total",
			Help: "Total number of rebuild attempts.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spectrace_rebuild_failures_total",
			Help: "Total number of failed rebuilds.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spectrace_rebuild_duration_seconds",
			Help:    "Wall-clock duration of successful rebuilds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		version: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spectrace_snapshot_version",
			Help: "Version of the currently published snapshot.",
		}),
		coverage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spectrace_coverage_percent",
			Help: "Coverage percentage per spec.",
		}, []string{"spec"}),
		uncovered: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spectrace_uncovered_rules",
			Help: "Number of uncovered rules per spec.",
		}, []string{"spec"}),
		invalidRefs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spectrace_invalid_references",
			Help: "Number of references to unknown rules per spec.",
		}, []string{"spec"}),
		scannedFiles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spectrace_scanned_files",
			Help: "Number of files scanned per spec.",
		}, []string{"spec"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.rebuilds, m.failures, m.duration, m.version,
		m.coverage, m.uncovered, m.invalidRefs, m.scannedFiles,
	)
	return m
}

// RebuildFailed records a failed rebuild attempt.
func (m *Metrics) RebuildFailed() {
	m.rebuilds.Inc()
	m.failures.Inc()
}

// RebuildSucceeded records a successful rebuild and refreshes per-spec gauges.
func (m *Metrics) RebuildSucceeded(data *DashboardData) {
	m.rebuilds.Inc()
	m.duration.Observe(data.Duration.Seconds())
	m.version.Set(float64(data.Version))

	for _, s := range data.Specs {
		m.coverage.WithLabelValues(s.Name).Set(s.Report.CoveragePercent())
		m.uncovered.WithLabelValues(s.Name).Set(float64(len(s.Report.UncoveredRules)))
		m.invalidRefs.WithLabelValues(s.Name).Set(float64(len(s.Report.InvalidReferences)))
		m.scannedFiles.WithLabelValues(s.Name).Set(float64(len(s.Files)))
	}
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package observability provides the structured logger, Prometheus metrics,
// and the optional metrics HTTP server for a generator run.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// File label values for the per-file metrics.
const (
	FileSampling     = "sampling"
	FileObservations = "observations"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// generator pipeline.
type Metrics struct {
	RowsRead     *prometheus.CounterVec // label: file={sampling,observations}
	RowsSkipped  *prometheus.CounterVec // label: file
	RowsFiltered *prometheus.CounterVec // label: file

	ChecklistsCounted prometheus.Counter
	DetectionsCounted prometheus.Counter

	PassDuration *prometheus.HistogramVec // label: pass={checklists,detections}
	RunActive    prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsRead,
		m.RowsSkipped,
		m.RowsFiltered,
		m.ChecklistsCounted,
		m.DetectionsCounted,
		m.PassDuration,
		m.RunActive,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotspot_guide",
			Name:      "rows_read_total",
			Help:      "Qualifying rows read from each input file.",
		}, []string{"file"}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotspot_guide",
			Name:      "rows_skipped_total",
			Help:      "Rows dropped for missing or unparseable required fields.",
		}, []string{"file"}),
		RowsFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotspot_guide",
			Name:      "rows_filtered_total",
			Help:      "Rows excluded by the admission filters.",
		}, []string{"file"}),
		ChecklistsCounted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hotspot_guide",
			Name:      "checklists_counted_total",
			Help:      "Distinct complete checklists accumulated across hotspots.",
		}),
		DetectionsCounted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hotspot_guide",
			Name:      "detections_counted_total",
			Help:      "Deduplicated species detections accumulated.",
		}),
		PassDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hotspot_guide",
			Name:      "pass_duration_seconds",
			Help:      "Duration of each full pass over an input file.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"pass"}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hotspot_guide",
			Name:      "run_active",
			Help:      "1 while a generator run is in progress, 0 otherwise.",
		}),
	}
}

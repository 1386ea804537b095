package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "season_stats"

// Metrics holds the Prometheus counters, histograms, and gauges for report runs.
type Metrics struct {
	Years       *prometheus.CounterVec // labels: outcome={fetched,skipped,failed}
	Rows        *prometheus.CounterVec // labels: result={kept,dropped}
	RowsDropped *prometheus.CounterVec // labels: reason={malformed,missing_field,out_of_range}

	FetchDuration *prometheus.HistogramVec // labels: outcome={ok,error}
	RunDuration   *prometheus.HistogramVec // labels: strategy
	RunsInFlight  prometheus.Gauge

	// Archive cache metrics.
	Cache *prometheus.CounterVec // labels: result={hit,miss}

	ReportsPublished prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Years,
		m.Rows,
		m.RowsDropped,
		m.FetchDuration,
		m.RunDuration,
		m.RunsInFlight,
		m.Cache,
		m.ReportsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Years: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "years_total",
			Help:      "Archive years processed by outcome.",
		}, []string{"outcome"}),
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Data rows read from archive files, kept or dropped.",
		}, []string{"result"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Data rows dropped by reason.",
		}, []string{"reason"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Archive download duration in seconds, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete report run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"strategy"}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Report runs currently executing.",
		}),
		Cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_total",
			Help:      "Archive cache lookups by result.",
		}, []string{"result"}),
		ReportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Reports written to the Kafka sink topic.",
		}),
	}
}

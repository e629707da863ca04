package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline.
type Metrics struct {
	ItemsFetched  *prometheus.CounterVec // labels: adapter
	ItemsInserted *prometheus.CounterVec // labels: adapter

	SweepProcessed prometheus.Counter
	SweepErrors    prometheus.Counter
	SweepDuration  prometheus.Histogram
	SweepBatchSize prometheus.Histogram

	GeocodeRequests    *prometheus.CounterVec // labels: outcome={hit,miss,error}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GraphWriteErrors   prometheus.Counter
	GraphWriteDuration prometheus.Histogram

	DispatcherActiveWorkers prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ItemsFetched,
		m.ItemsInserted,
		m.SweepProcessed,
		m.SweepErrors,
		m.SweepDuration,
		m.SweepBatchSize,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GraphWriteErrors,
		m.GraphWriteDuration,
		m.DispatcherActiveWorkers,
	)
	return m
}

// NewMetricsForTesting creates Metrics unregistered with the default
// registry, to avoid "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ItemsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osint_ingest",
			Name:      "items_fetched_total",
			Help:      "Total raw items returned by a source adapter fetch.",
		}, []string{"adapter"}),
		ItemsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osint_ingest",
			Name:      "items_inserted_total",
			Help:      "Total raw items freshly inserted into the raw store (excludes duplicates).",
		}, []string{"adapter"}),
		SweepProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osint_ingest",
			Name:      "sweep_processed_total",
			Help:      "Total raw items successfully processed by a sweep unit.",
		}),
		SweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osint_ingest",
			Name:      "sweep_errors_total",
			Help:      "Total raw items that failed processing and were left unprocessed for retry.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "osint_ingest",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a complete sweep unit (tag, normalise, geocode, graph-write).",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		SweepBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "osint_ingest",
			Name:      "sweep_batch_size",
			Help:      "Number of unprocessed rows drained per sweep batch.",
			Buckets:   []float64{1, 10, 25, 50, 100, 150, 200},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osint_ingest",
			Name:      "geocode_requests_total",
			Help:      "Geocoding requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osint_ingest",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GraphWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osint_ingest",
			Name:      "graph_write_errors_total",
			Help:      "Total graph-write transaction failures.",
		}),
		GraphWriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "osint_ingest",
			Name:      "graph_write_duration_seconds",
			Help:      "Duration of a single document's graph-write transaction.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		DispatcherActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "osint_ingest",
			Name:      "dispatcher_active_workers",
			Help:      "Number of dispatcher workers currently processing a task.",
		}),
	}
}

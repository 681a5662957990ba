package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rally_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the rally pipeline.
type Metrics struct {
	// Ingestion metrics.
	DocumentsDiscovered prometheus.Counter
	DocumentsFailed     prometheus.Counter
	BlocksSkipped       prometheus.Counter
	EventsExtracted     prometheus.Counter
	RalliesPersisted    prometheus.Counter
	PersistErrors       *prometheus.CounterVec // labels: entity={candidate,district,rally,prediction}
	RalliesPublished    prometheus.Counter

	// Prediction metrics.
	PredictionsCreated *prometheus.CounterVec // labels: jam_level
	PredictionsSkipped prometheus.Counter

	// Scheduler metrics.
	JobRuns     *prometheus.CounterVec   // labels: job, outcome={success,error}
	JobDuration *prometheus.HistogramVec // labels: job
	JobRunning  *prometheus.GaugeVec     // labels: job

	// Geo provider metrics.
	GeoRequests    *prometheus.CounterVec   // labels: method={flow,route,geocode}, outcome={success,error,empty,skipped}
	GeoCache       *prometheus.CounterVec   // labels: method, result={hit,miss}
	GeoAPIDuration *prometheus.HistogramVec // labels: method
	GeoEnabled     prometheus.Gauge

	// Feed metrics.
	FeedMatches prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.DocumentsDiscovered,
		m.DocumentsFailed,
		m.BlocksSkipped,
		m.EventsExtracted,
		m.RalliesPersisted,
		m.PersistErrors,
		m.RalliesPublished,
		m.PredictionsCreated,
		m.PredictionsSkipped,
		m.JobRuns,
		m.JobDuration,
		m.JobRunning,
		m.GeoRequests,
		m.GeoCache,
		m.GeoAPIDuration,
		m.GeoEnabled,
		m.FeedMatches,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		DocumentsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_discovered_total",
			Help:      help("Schedule documents discovered on the landing page."),
		}),
		DocumentsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_failed_total",
			Help:      help("Schedule documents that could not be downloaded or decoded."),
		}),
		BlocksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_skipped_total",
			Help:      help("Schedule blocks dropped as malformed."),
		}),
		EventsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_extracted_total",
			Help:      help("Rally events extracted from schedule documents."),
		}),
		RalliesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rallies_persisted_total",
			Help:      help("Rally upserts that succeeded."),
		}),
		PersistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      help("Storage write failures by entity."),
		}, []string{"entity"}),
		RalliesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rallies_published_total",
			Help:      help("Rally change events written to Kafka."),
		}),
		PredictionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_created_total",
			Help:      help("Traffic predictions created by jam level."),
		}, []string{"jam_level"}),
		PredictionsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_skipped_total",
			Help:      help("Upcoming rallies skipped because a prediction already exists."),
		}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      help("Scheduled job executions by job and outcome."),
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      help("Duration of a scheduled job execution."),
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"job"}),
		JobRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_running",
			Help:      help("Number of in-flight executions per job."),
		}, []string{"job"}),
		GeoRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_requests_total",
			Help:      help("Geo provider requests by method and outcome."),
		}, []string{"method", "outcome"}),
		GeoCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_cache_total",
			Help:      help("Geo cache lookups by method and result."),
		}, []string{"method", "result"}),
		GeoAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geo_api_duration_seconds",
			Help:      help("Geo provider request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeoEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geo_enabled",
			Help:      help("1 when a geo provider API key is configured, 0 otherwise."),
		}),
		FeedMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_matches_total",
			Help:      help("Announcement feed items matching schedule keywords."),
		}),
	}
}

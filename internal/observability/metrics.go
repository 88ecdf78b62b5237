package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wildfire"

// Metrics holds the Prometheus counters, histograms, and gauges for the analyser.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Assessment metrics.
	Assessments      *prometheus.CounterVec   // labels: outcome={succeeded,failed}
	StageDuration    *prometheus.HistogramVec // labels: stage={collection,indexes,downloads}
	ProductsRendered *prometheus.CounterVec   // labels: kind
	ProductBytes     prometheus.Counter
	ResultCache      *prometheus.CounterVec // labels: result={hit,miss}

	// Earth Engine metrics.
	EERequests    *prometheus.CounterVec   // labels: method={compute,pixels}, outcome={success,error,retry}
	EEAPIDuration *prometheus.HistogramVec // labels: method={compute,pixels}

	// Bucket policy audit metrics.
	BucketLifecycleCompliant prometheus.Gauge
	BucketWritable           prometheus.Gauge
	BucketAuditErrors        prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
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
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      help("Total assessment requests read from the source topic."),
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      help("Total assessment reports written to the sink topic."),
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      help("Total messages that could not be turned into a report."),
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 when the pipeline is active, 0 when shut down."),
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      help("Number of requests per batch extracted from Kafka."),
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      help("Duration of a complete batch extract-transform-load cycle."),
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		Assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      help("Assessments by outcome."),
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_stage_duration_seconds",
			Help:      help("Duration of each assessment stage."),
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		ProductsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_rendered_total",
			Help:      help("Rendered products by kind."),
		}, []string{"kind"}),
		ProductBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "product_bytes_total",
			Help:      help("Bytes of rendered products written to storage."),
		}),
		ResultCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_total",
			Help:      help("Report cache lookups by result."),
		}, []string{"result"}),
		EERequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "earthengine_requests_total",
			Help:      help("Earth Engine API requests by method and outcome."),
		}, []string{"method", "outcome"}),
		EEAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "earthengine_api_duration_seconds",
			Help:      help("Earth Engine API request duration in seconds."),
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"method"}),
		BucketLifecycleCompliant: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bucket_lifecycle_compliant",
			Help:      help("1 when the bucket deletes objects after 24 hours, 0 otherwise."),
		}),
		BucketWritable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bucket_writable",
			Help:      help("1 when the service account can write to the bucket, 0 otherwise."),
		}),
		BucketAuditErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bucket_audit_errors_total",
			Help:      help("Bucket policy audits that failed to complete."),
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.Assessments,
		m.StageDuration,
		m.ProductsRendered,
		m.ProductBytes,
		m.ResultCache,
		m.EERequests,
		m.EEAPIDuration,
		m.BucketLifecycleCompliant,
		m.BucketWritable,
		m.BucketAuditErrors,
	}
}

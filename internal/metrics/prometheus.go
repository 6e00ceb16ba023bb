package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecordsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leakscope_records_processed_total",
			Help: "Raw records consumed per source",
		},
		[]string{"source"},
	)

	EntriesRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leakscope_entries_routed_total",
			Help: "Entries routed per terminal bucket",
		},
		[]string{"bucket"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leakscope_confidence_score",
			Help:    "Scored entry confidence values",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	ClassifierFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leakscope_classifier_fallbacks_total",
			Help: "Classifier failures degraded to the neutral probability",
		},
	)

	SinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leakscope_sink_errors_total",
			Help: "Persistence failures per sink",
		},
		[]string{"sink"},
	)

	SourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leakscope_source_failures_total",
			Help: "Source units that finished with an error",
		},
		[]string{"source"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leakscope_run_duration_seconds",
			Help:    "Full triage run duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	RunsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leakscope_runs_rejected_total",
			Help: "Triggers rejected because a run was already in progress",
		},
	)
)

func Init() {
	prometheus.MustRegister(RecordsProcessed)
	prometheus.MustRegister(EntriesRouted)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(ClassifierFallbacks)
	prometheus.MustRegister(SinkErrors)
	prometheus.MustRegister(SourceFailures)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(RunsRejected)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

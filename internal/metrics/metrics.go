// Package metrics provides Prometheus metrics collection for the DGA engine.
// It defines the labelling, training, classification and HTTP metrics exposed
// via the Prometheus metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dga"

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Labelling and dataset metrics
	VoteFailures    *prometheus.CounterVec // Normative method failures by method
	DatasetExamples prometheus.Gauge       // Examples in the last built dataset
	DatasetSkipped  prometheus.Gauge       // Samples skipped for lack of consensus
	SamplesImported prometheus.Counter     // Samples stored through the importer

	// Training metrics
	TrainingRuns     prometheus.Counter
	TrainingFailures prometheus.Counter
	TrainingDuration prometheus.Histogram
	CandidateScore   *prometheus.GaugeVec // Mean CV accuracy by candidate

	// Classification metrics
	Classifications       *prometheus.CounterVec // Predictions by fault label
	ClassificationErrors  prometheus.Counter
	ClassificationLatency prometheus.Histogram
	ModelLoads            prometheus.Counter
	ModelLoadFailures     prometheus.Counter

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec   // Requests by route and status code
	HTTPDuration *prometheus.HistogramVec // Request latency by route
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		VoteFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_failures_total",
			Help:      "Total number of normative method failures during labelling",
		}, []string{"method"}),
		DatasetExamples: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_examples",
			Help:      "Number of labelled examples in the last built dataset",
		}),
		DatasetSkipped: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_skipped",
			Help:      "Number of samples without a consensus label in the last built dataset",
		}),
		SamplesImported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_imported_total",
			Help:      "Total number of samples stored by the importer",
		}),
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Total number of training runs started",
		}),
		TrainingFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_failures_total",
			Help:      "Total number of training runs that failed",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Duration of successful training runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		CandidateScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_cv_accuracy",
			Help:      "Mean cross-validated accuracy of each candidate in the last run",
		}, []string{"candidate"}),
		Classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Total number of readings classified, by predicted label",
		}, []string{"label"}),
		ClassificationErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_errors_total",
			Help:      "Total number of rejected or failed classifications",
		}),
		ClassificationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classification_latency_seconds",
			Help:      "Classification latency in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		ModelLoads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Total number of model artifacts loaded from disk",
		}),
		ModelLoadFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_load_failures_total",
			Help:      "Total number of corrupt or unreadable model artifacts",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ClassificationErrorRate returns errors divided by successful
// classifications as gathered from g, or 0 when nothing has been classified.
func ClassificationErrorRate(g prometheus.Gatherer) float64 {
	var total, errs float64

	families, err := g.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		switch mf.GetName() {
		case namespace + "_classifications_total":
			for _, m := range mf.Metric {
				total += m.GetCounter().GetValue()
			}
		case namespace + "_classification_errors_total":
			for _, m := range mf.Metric {
				errs += m.GetCounter().GetValue()
			}
		}
	}

	if total == 0 {
		return 0
	}
	return errs / total
}

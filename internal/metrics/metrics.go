package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_predictions_total",
			Help: "Predict calls by outcome",
		},
		[]string{"outcome"}, // ok|missing_id|not_found|inference_error|internal
	)

	InferenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_inference_duration_seconds",
			Help:    "Classifier label+probability inference latency",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_cache_lookups_total",
			Help: "Prediction cache lookups by tier and result",
		},
		[]string{"tier", "result"}, // lru|redis , hit|miss|error
	)

	AuditEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_audit_events_total",
			Help: "Audit events lifecycle counter",
		},
		[]string{"stage"}, // published|dropped|failed|stored|invalid
	)

	ArtifactBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scoring_model_artifact_bytes",
			Help: "Size of the loaded model artifact",
		},
	)

	FeatureRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scoring_feature_rows",
			Help: "Number of client rows in the loaded feature table",
		},
	)
)

var registerOnce sync.Once

// MustRegister registers all collectors once; later calls are no-ops so the
// server and workers can both call it.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			PredictionsTotal,
			InferenceDuration,
			CacheLookups,
			AuditEvents,
			ArtifactBytes,
			FeatureRows,
		)
	})
}

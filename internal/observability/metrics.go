package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "streetlight"

// Metrics holds the Prometheus counters, histograms, and gauges for the predictor.
type Metrics struct {
	// Prediction metrics.
	Predictions        *prometheus.CounterVec // labels: outcome={success,error,untrained}
	PredictedIntensity prometheus.Histogram
	AdjustmentsFired   *prometheus.CounterVec // labels: step={air_quality,traffic,ambient_light,motion}
	FeatureWarnings    *prometheus.CounterVec // labels: feature

	// Gateway metrics.
	GatewayRequests *prometheus.CounterVec   // labels: gateway, outcome={live,fallback,simulated,estimated,error}
	GatewayDuration *prometheus.HistogramVec // labels: gateway

	// Model metrics.
	ModelTrained     prometheus.Gauge
	TrainingDuration prometheus.Histogram
	ModelMAE         prometheus.Gauge
	ModelR2          prometheus.Gauge

	// Override relay metrics.
	Overrides *prometheus.CounterVec // labels: outcome={success,rejected,timeout,unavailable,invalid}

	// Record publisher metrics.
	RecordsPublished prometheus.Counter
	PublishErrors    *prometheus.CounterVec // labels: sink
	QueueDropped     prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Prediction requests by outcome.",
		}, []string{"outcome"}),
		PredictedIntensity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_intensity",
			Help:      "Distribution of recommended lamp intensity (0-100).",
			Buckets:   []float64{0, 10, 15, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		AdjustmentsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adjustments_fired_total",
			Help:      "Cascade steps that changed the intensity, by step.",
		}, []string{"step"}),
		FeatureWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_warnings_total",
			Help:      "Inference features outside their expected range, by feature.",
		}, []string{"feature"}),
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Upstream data requests by gateway and outcome.",
		}, []string{"gateway", "outcome"}),
		GatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_duration_seconds",
			Help:      "Upstream request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"gateway"}),
		ModelTrained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_trained",
			Help:      "1 once the regression model is fitted, 0 before.",
		}),
		TrainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_training_duration_seconds",
			Help:      "Duration of model training including dataset load.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ModelMAE: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_mae",
			Help:      "Mean absolute error on the held-out split.",
		}),
		ModelR2: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_r2",
			Help:      "R squared on the held-out split.",
		}),
		Overrides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overrides_total",
			Help:      "User light overrides relayed to the IoT platform, by outcome.",
		}, []string{"outcome"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Prediction records delivered to every configured sink.",
		}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed prediction record batch writes, by sink.",
		}, []string{"sink"}),
		QueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Prediction records dropped because the publish queue was full.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Predictions,
		m.PredictedIntensity,
		m.AdjustmentsFired,
		m.FeatureWarnings,
		m.GatewayRequests,
		m.GatewayDuration,
		m.ModelTrained,
		m.TrainingDuration,
		m.ModelMAE,
		m.ModelR2,
		m.Overrides,
		m.RecordsPublished,
		m.PublishErrors,
		m.QueueDropped,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

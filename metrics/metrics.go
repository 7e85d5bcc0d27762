// Package metrics holds the prometheus collectors shared by the api,
// predictor and ingester binaries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ForecastOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crs_forecast_outcomes_total",
		Help: "Forecasts produced, by source (ai, ai+fallback, fallback) and fallback reason.",
	}, []string{"source", "reason"})

	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crs_prediction_pipeline_duration_seconds",
		Help:    "Duration of a full load, compute, forecast cycle.",
		Buckets: []float64{0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 30.0, 60.0},
	})

	PipelineFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crs_prediction_pipeline_failures_total",
		Help: "Prediction requests that failed because official data was unavailable.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crs_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crs_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
	}, []string{"name"})

	DrawsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crs_ingester_draws_received_total",
		Help: "Draw records received from IRCC or MQTT.",
	})
	DrawsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crs_ingester_draws_stored_total",
		Help: "Draw records newly written to the store.",
	})
	DrawsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crs_ingester_draws_failed_total",
		Help: "Draw records rejected or failed to store.",
	})

	PredictorCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crs_predictor_cycles_total",
		Help: "Predictor refresh cycles by trigger and result.",
	}, []string{"trigger", "result"})
	PredictionsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crs_predictor_predictions_published_total",
		Help: "Prediction reports published to Redis.",
	})
)

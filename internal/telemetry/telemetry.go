// Package telemetry holds the Prometheus collectors for paxcast and the
// handler that exposes them.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of collectors registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	// HTTPRequestsTotal counts requests by method, route pattern and status
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestDuration observes request latency in seconds
	HTTPRequestDuration *prometheus.HistogramVec
	// PredictionsTotal counts stored predictions by model type
	PredictionsTotal *prometheus.CounterVec
	// TrainingRunsTotal counts training runs by outcome ("success" | "failure")
	TrainingRunsTotal *prometheus.CounterVec
	// ModelRMSE and ModelMAE hold the latest cumulative snapshot
	ModelRMSE prometheus.Gauge
	ModelMAE  prometheus.Gauge
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paxcast_http_requests_total",
				Help: "Total number of HTTP requests handled",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paxcast_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PredictionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paxcast_predictions_total",
				Help: "Total number of predictions served and stored",
			},
			[]string{"model_type"},
		),
		TrainingRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paxcast_training_runs_total",
				Help: "Total number of training runs by outcome",
			},
			[]string{"status"},
		),
		ModelRMSE: f.NewGauge(prometheus.GaugeOpts{
			Name: "paxcast_model_rmse",
			Help: "Latest cumulative RMSE over predictions with actual values",
		}),
		ModelMAE: f.NewGauge(prometheus.GaugeOpts{
			Name: "paxcast_model_mae",
			Help: "Latest cumulative MAE over predictions with actual values",
		}),
	}
}

// ObserveRequest records one finished HTTP request. A nil receiver is a no-op.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObservePrediction counts a stored prediction.
func (m *Metrics) ObservePrediction(modelType string) {
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues(modelType).Inc()
}

// ObserveTraining counts a training run.
func (m *Metrics) ObserveTraining(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.TrainingRunsTotal.WithLabelValues(status).Inc()
}

// SetModelQuality publishes the latest RMSE/MAE snapshot.
func (m *Metrics) SetModelQuality(rmse, mae float64) {
	if m == nil {
		return
	}
	m.ModelRMSE.Set(rmse)
	m.ModelMAE.Set(mae)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// NewServer returns an *http.Server exposing /metrics on addr.
func (m *Metrics) NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

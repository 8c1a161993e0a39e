package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	transcriptionAttempts *prometheus.CounterVec
	transcriptionResults  *prometheus.CounterVec
	transcriptionDuration prometheus.Histogram
	healthProbes          *prometheus.CounterVec
	messagesSettled       *prometheus.CounterVec
	httpRequests          *prometheus.CounterVec
	httpDuration          *prometheus.HistogramVec
}

// New creates collectors registered on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transcriptionAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tnt_transcription_attempts_total",
				Help: "Transcription HTTP attempts by outcome",
			},
			[]string{"outcome"},
		),
		transcriptionResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tnt_transcription_results_total",
				Help: "Transcription calls after retries, by final category",
			},
			[]string{"category"},
		),
		transcriptionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tnt_transcription_duration_seconds",
				Help:    "Wall time of a transcription call including retries",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180, 360, 720},
			},
		),
		healthProbes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tnt_backend_health_probes_total",
				Help: "Backend liveness probes by result",
			},
			[]string{"status"},
		),
		messagesSettled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tnt_messages_settled_total",
				Help: "Messages reaching a terminal state",
			},
			[]string{"status"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tnt_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tnt_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		m.transcriptionAttempts,
		m.transcriptionResults,
		m.transcriptionDuration,
		m.healthProbes,
		m.messagesSettled,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) TranscriptionAttempt(outcome string) {
	if m == nil {
		return
	}
	m.transcriptionAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TranscriptionResult(category string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transcriptionResults.WithLabelValues(category).Inc()
	m.transcriptionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) HealthProbe(online bool) {
	if m == nil {
		return
	}
	status := "offline"
	if online {
		status = "online"
	}
	m.healthProbes.WithLabelValues(status).Inc()
}

func (m *Metrics) MessageSettled(status string) {
	if m == nil {
		return
	}
	m.messagesSettled.WithLabelValues(status).Inc()
}

func (m *Metrics) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

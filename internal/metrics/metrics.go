package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proprofile",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "proprofile",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proprofile",
			Subsystem: "intake",
			Name:      "uploads_total",
			Help:      "Source image selections by detected media type and outcome",
		},
		[]string{"media_type", "status"},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proprofile",
			Subsystem: "intake",
			Name:      "upload_bytes_total",
			Help:      "Total bytes of accepted source images",
		},
	)

	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proprofile",
			Subsystem: "portrait",
			Name:      "generations_total",
			Help:      "Portrait generation attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "proprofile",
			Subsystem: "portrait",
			Name:      "generation_duration_seconds",
			Help:      "Duration of the outbound generative-image call",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"provider"},
	)

	GenerationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "proprofile",
			Subsystem: "portrait",
			Name:      "generations_in_flight",
			Help:      "Generation calls currently awaiting the service",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "proprofile",
			Subsystem: "studio",
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory",
		},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

// RecordUpload records a source image selection.
func RecordUpload(mediaType, status string, bytes int) {
	if mediaType == "" {
		mediaType = "unknown"
	}
	UploadsTotal.WithLabelValues(mediaType, status).Inc()
	if status == "success" {
		UploadBytesTotal.Add(float64(bytes))
	}
}

// RecordGeneration records a finished generation call.
func RecordGeneration(provider, outcome string, durationSec float64) {
	GenerationsTotal.WithLabelValues(provider, outcome).Inc()
	GenerationDuration.WithLabelValues(provider).Observe(durationSec)
}

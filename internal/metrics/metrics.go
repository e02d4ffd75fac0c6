// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sendsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cesto_sends_total",
		Help: "Total number of broadcast send attempts",
	}, []string{"status"})

	sendDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cesto_send_duration_seconds",
		Help:    "Duration of broadcast deliveries in seconds",
		Buckets: prometheus.DefBuckets,
	})

	videosTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cesto_videos_total",
		Help: "Number of videos in the shared catalog",
	})

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cesto_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "code"})

	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cesto_errors_total",
		Help: "Total number of errors",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(sendsTotal)
	prometheus.MustRegister(sendDurationSeconds)
	prometheus.MustRegister(videosTotal)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(errorsTotal)
}

// RecordSend records the outcome and duration of one delivery
func RecordSend(status string, duration time.Duration) {
	sendsTotal.WithLabelValues(status).Inc()
	sendDurationSeconds.Observe(duration.Seconds())
}

// SetVideoCount updates the videos gauge
func SetVideoCount(n int) {
	videosTotal.Set(float64(n))
}

// RecordRequest counts one HTTP request by route pattern
func RecordRequest(method, route string, code int) {
	httpRequestsTotal.WithLabelValues(method, route, statusClass(code)).Inc()
}

// RecordError counts an error of the given type
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

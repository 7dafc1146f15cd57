package metrics

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	transitionsTotal    *prometheus.CounterVec
	eventsTotal         *prometheus.CounterVec
	enrollmentsTotal    *prometheus.CounterVec
	answerKeyCacheTotal *prometheus.CounterVec
)

// Register initialises the Prometheus collectors. Safe to call repeatedly.
func Register() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "integrity_http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "integrity_http_latency_seconds",
			Help:    "Latency distribution of HTTP requests.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "integrity_submission_transitions_total",
			Help: "Submission state machine operations by outcome.",
		}, []string{"operation", "outcome"})

		eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "integrity_proctoring_events_total",
			Help: "Proctoring events recorded, by type and assigned severity.",
		}, []string{"event_type", "severity", "late"})

		enrollmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "integrity_enrollment_operations_total",
			Help: "Roster operations by outcome.",
		}, []string{"operation", "outcome"})

		answerKeyCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "integrity_answer_key_cache_total",
			Help: "Answer key cache lookups by result.",
		}, []string{"result"})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, transitionsTotal,
			eventsTotal, enrollmentsTotal, answerKeyCacheTotal)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	Register()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	Register()
	return httpLatencySeconds
}

// Transition counts one state machine operation.
func Transition(operation, outcome string) {
	Register()
	transitionsTotal.WithLabelValues(operation, outcome).Inc()
}

// Event counts one recorded proctoring event.
func Event(eventType, severity string, late bool) {
	Register()
	l := "false"
	if late {
		l = "true"
	}
	eventsTotal.WithLabelValues(eventType, severity, l).Inc()
}

// Enrollment counts one roster operation.
func Enrollment(operation, outcome string) {
	Register()
	enrollmentsTotal.WithLabelValues(operation, outcome).Inc()
}

// AnswerKeyCache counts one answer key lookup ("hit", "miss" or "error").
func AnswerKeyCache(result string) {
	Register()
	answerKeyCacheTotal.WithLabelValues(result).Inc()
}

// Handler exposes the Prometheus scrape endpoint via Gin.
func Handler() gin.HandlerFunc {
	Register()
	return gin.WrapH(promhttp.Handler())
}

package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	patientsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patients_created_total",
			Help: "Total number of patient records created",
		},
		[]string{"service", "source"},
	)

	duplicatesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patients_duplicates_rejected_total",
			Help: "Total number of patient creations rejected as duplicates",
		},
		[]string{"service"},
	)

	patientsDeactivated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patients_deactivated_total",
			Help: "Total number of patient soft deletes",
		},
		[]string{"service"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of peer notifications attempted",
		},
		[]string{"source", "peer", "status"},
	)

	roleDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_role_denials_total",
			Help: "Total number of portal requests denied by the role gate",
		},
		[]string{"role", "reason"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware for the named service
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			path := normalizePath(r.URL.Path)

			httpRequestsTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(service, r.Method, path).Observe(duration)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath collapses UUID path segments to keep label cardinality bounded
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if len(s) == 36 && strings.Count(s, "-") == 4 {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

// --- Business metric helpers ---

// RecordPatientCreated records a stored patient record
func RecordPatientCreated(service, source string) {
	patientsCreated.WithLabelValues(service, source).Inc()
}

// RecordDuplicateRejected records a create rejected by the dedup check
func RecordDuplicateRejected(service string) {
	duplicatesRejected.WithLabelValues(service).Inc()
}

// RecordPatientDeactivated records a soft delete
func RecordPatientDeactivated(service string) {
	patientsDeactivated.WithLabelValues(service).Inc()
}

// RecordNotification records a peer notification attempt
func RecordNotification(source, peer, status string) {
	notificationsTotal.WithLabelValues(source, peer, status).Inc()
}

// RecordRoleDenial records a portal request denied by the role gate
func RecordRoleDenial(role, reason string) {
	roleDenials.WithLabelValues(role, reason).Inc()
}

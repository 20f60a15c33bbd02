// Package gateway exposes the editor service and repair driver over HTTP,
// wiring the teacher's chi/cors/prometheus/x-time stack onto Astra's
// request set instead of Sentinel Hub's task/document API.
package gateway

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-facing and domain-specific Prometheus instruments
// this gateway records.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge

	RepairIterations  prometheus.Histogram
	PropcheckCasesRun prometheus.Counter
}

// NewMetrics registers and returns the gateway's metrics under namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "astra_gateway"
	}
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path", "status"},
		),
		ActiveRequests: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_requests",
				Help:      "In-flight HTTP requests",
			},
		),
		RepairIterations: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "repair_loop_iterations",
				Help:      "Number of iterations a /repair run took before stopping",
				Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8, 10},
			},
		),
		PropcheckCasesRun: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "propcheck_cases_run_total",
				Help:      "Total number of property-test cases executed across all /test runs",
			},
		),
	}
}

// Middleware records request count, duration, and active-request gauge for
// every request, path-normalized to avoid per-document-URI cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		m.ActiveRequests.Inc()
		defer m.ActiveRequests.Dec()

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapper.status)
		path := normalizePath(r.URL.Path)
		m.RequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// normalizePath collapses UUID-shaped path segments and numeric segments of
// more than three digits to ":id", so metrics cardinality stays bounded.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if len(part) == 36 && strings.Count(part, "-") == 4 {
			parts[i] = ":id"
		} else if isNumeric(part) && len(part) > 3 {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

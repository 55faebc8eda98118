// Package metrics holds the prometheus instrumentation for both binaries.
// Each service owns a private registry so /metrics never leaks another
// process's collectors.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cqa"

// HTTPServerMetrics instruments the api service: generic request telemetry
// plus the question-pipeline signals (matched type, citation source, backend
// failures, partial fusions).
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	askTotal           *prometheus.CounterVec
	askDuration        *prometheus.HistogramVec
	citationsPerAnswer *prometheus.HistogramVec
	backendErrorsTotal *prometheus.CounterVec
	partialTotal       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	m := &HTTPServerMetrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Handled HTTP requests.",
		}, []string{"service", "method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method", "path"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Requests currently being served.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		askTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Answered questions by matched type and citation source.",
		}, []string{"service", "question_type", "source"}),
		askDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Question pipeline duration in seconds, dominated by fused retrieval.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		citationsPerAnswer: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ask",
			Name:      "citations_per_answer",
			Help:      "Citations returned per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}, []string{"service"}),
		backendErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "backend_errors_total",
			Help:      "Backend failures or timeouts during fused retrieval.",
		}, []string{"service", "backend"}),
		partialTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "partial_results_total",
			Help:      "Retrievals that completed with only one backend.",
		}, []string{"service"}),
	}
	m.registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.askTotal,
		m.askDuration,
		m.citationsPerAnswer,
		m.backendErrorsTotal,
		m.partialTotal,
	)
	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and duration under a normalized path so
// per-document URLs cannot explode label cardinality.
func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		observed := &observedResponse{ResponseWriter: w, status: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(observed, r)

		m.requestTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(observed.status)).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	if strings.HasPrefix(path, "/v1/contracts/") {
		return "/v1/contracts/{document_id}"
	}
	return path
}

// RecordAskObservation counts one answered question. source is the confidence
// hint, so metadata-shortcut answers and degraded fusions are separable on
// dashboards.
func (m *HTTPServerMetrics) RecordAskObservation(service, questionType, source string, citations int, duration time.Duration) {
	if questionType == "" {
		questionType = "unknown"
	}
	if source == "" {
		source = "unknown"
	}
	m.askTotal.WithLabelValues(service, questionType, source).Inc()
	m.askDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.citationsPerAnswer.WithLabelValues(service).Observe(float64(citations))
}

func (m *HTTPServerMetrics) RecordBackendFailures(service string, failedBackends []string) {
	for _, backend := range failedBackends {
		m.backendErrorsTotal.WithLabelValues(service, backend).Inc()
	}
	if len(failedBackends) == 1 {
		m.partialTotal.WithLabelValues(service).Inc()
	}
}

// observedResponse keeps the final status for the request counter while
// passing Flush/Hijack/Push through to the wrapped writer.
type observedResponse struct {
	http.ResponseWriter
	status int
}

func (w *observedResponse) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *observedResponse) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *observedResponse) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer %T does not implement http.Hijacker", w.ResponseWriter)
	}
	return hijacker.Hijack()
}

func (w *observedResponse) Push(target string, opts *http.PushOptions) error {
	if pusher, ok := w.ResponseWriter.(http.Pusher); ok {
		return pusher.Push(target, opts)
	}
	return http.ErrNotSupported
}

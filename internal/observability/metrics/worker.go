package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics instruments the batch worker: job throughput and latency,
// queue lag measured from the enqueue timestamp, and result publish health.
type WorkerMetrics struct {
	registry *prometheus.Registry

	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobsInFlight    prometheus.Gauge
	jobCitations    *prometheus.HistogramVec
	queueLag        *prometheus.HistogramVec
	publishFailures *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	m := &WorkerMetrics{
		registry: prometheus.NewRegistry(),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Finished ask jobs by status.",
		}, []string{"service", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Question pipeline duration per job by status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "status"}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "jobs_in_flight",
			Help:        "Jobs currently being answered.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		jobCitations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "job_citations",
			Help:      "Citations produced per answered job.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}, []string{"service"}),
		queueLag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job enqueue and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"service"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "result_publish_failures_total",
			Help:      "Result messages that could not be published.",
		}, []string{"service"}),
	}
	m.registry.MustRegister(m.jobsTotal, m.jobDuration, m.jobsInFlight, m.jobCitations, m.queueLag, m.publishFailures)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobsInFlight.Inc()
}

// FinishJob records one completed job. citations is ignored for failed jobs.
func (m *WorkerMetrics) FinishJob(service string, citations int, duration time.Duration, err error) {
	m.jobsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	} else {
		m.jobCitations.WithLabelValues(service).Observe(float64(citations))
	}
	m.jobsTotal.WithLabelValues(service, status).Inc()
	m.jobDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordPublishFailure(service string) {
	m.publishFailures.WithLabelValues(service).Inc()
}

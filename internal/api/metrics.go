package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/imagersharp/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	rateLimitRejected *prometheus.CounterVec
	queueEnqueued     *prometheus.CounterVec
	editsTotal        *prometheus.CounterVec
	editOutputBytes   *prometheus.HistogramVec
	stageDuration     *prometheus.HistogramVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagersharp_api_requests_total",
			Help: "Total HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imagersharp_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagersharp_api_rate_limit_rejections_total",
			Help: "Total API requests rejected by rate limiting.",
		}, []string{"route"}),
		queueEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagersharp_queue_jobs_enqueued_total",
			Help: "Total edit jobs enqueued to the processing queue.",
		}, []string{"queue"}),
		editsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagersharp_api_edits_total",
			Help: "Synchronous edits by output format and outcome kind.",
		}, []string{"format", "outcome"}),
		editOutputBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imagersharp_api_edit_output_bytes",
			Help:    "Encoded size of synchronous edit responses.",
			Buckets: prometheus.ExponentialBuckets(4<<10, 4, 8),
		}, []string{"format"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imagersharp_pipeline_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage of synchronous edits.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"stage"}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.queueEnqueued,
		m.editsTotal,
		m.editOutputBytes,
		m.stageDuration,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) observeEdit(format string, res pipeline.Result, err error) {
	if err != nil {
		m.editsTotal.WithLabelValues(format, pipeline.ErrorKind(err)).Inc()
		return
	}
	m.editsTotal.WithLabelValues(format, "ok").Inc()
	m.editOutputBytes.WithLabelValues(format).Observe(float64(len(res.Data)))
	for _, t := range res.Timings {
		m.stageDuration.WithLabelValues(t.Stage).Observe(t.Elapsed.Seconds())
	}
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := strconv.Itoa(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// routeLabel collapses job ids so label cardinality stays bounded.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/jobs/") && strings.HasSuffix(path, "/start"):
		return "/v1/jobs/{id}/start"
	case strings.HasPrefix(path, "/v1/jobs/"):
		return "/v1/jobs/{id}"
	case path == "/v1/jobs":
		return "/v1/jobs"
	case path == "/v1/process":
		return "/v1/process"
	case path == "/healthz":
		return "/healthz"
	case path == "/metrics":
		return "/metrics"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

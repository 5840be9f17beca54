// Package metrics holds the Prometheus collectors for tool calls, retries
// and the HTTP transport.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "confluence_mcp"

// Metrics is a set of collectors registered on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	ToolInvocations     *prometheus.CounterVec
	ToolDuration        *prometheus.HistogramVec
	ToolErrors          *prometheus.CounterVec
	Retries             *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	StartTime           prometheus.Gauge
	ActiveConnections   prometheus.Gauge
}

// New creates and registers every collector, plus the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		ToolInvocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Total number of tool invocations",
		}, []string{"tool_name", "status"}),

		ToolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool execution time in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"tool_name"}),

		ToolErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_errors_total",
			Help:      "Total number of tool errors by type",
		}, []string{"tool_name", "error_type"}),

		Retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of retries of remote calls",
		}, []string{"operation"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),

		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),

		StartTime: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_start_time_seconds",
			Help:      "Unix time the server started",
		}),

		ActiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of open event-stream connections",
		}),
	}
	m.StartTime.Set(float64(time.Now().Unix()))
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveTool records one finished tool call. errorType is empty on success.
func (m *Metrics) ObserveTool(tool string, d time.Duration, errorType string) {
	status := "success"
	if errorType != "" {
		status = "error"
		m.ToolErrors.WithLabelValues(tool, errorType).Inc()
	}
	m.ToolInvocations.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveRetry counts one retry of operation.
func (m *Metrics) ObserveRetry(operation string) {
	m.Retries.WithLabelValues(operation).Inc()
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(method, endpoint string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusLabel(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// Middleware records request count and latency for the wrapped handler
// under the given endpoint label.
func (m *Metrics) Middleware(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		m.ObserveHTTP(r.Method, endpoint, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Flush lets event streams pass through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func statusLabel(status int) string {
	if status == 0 {
		status = http.StatusOK
	}
	return strconv.Itoa(status)
}

package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	agentRunsTotal       *prometheus.CounterVec
	agentRunDuration     *prometheus.HistogramVec
	agentDelegations     *prometheus.HistogramVec
	delegationCallsTotal *prometheus.CounterVec
	modelTokensTotal     *prometheus.CounterVec
}

func NewServerMetrics(service string) *ServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gaa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gaa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gaa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	agentRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gaa",
			Subsystem: "agent",
			Name:      "runs_total",
			Help:      "Total completed agent invocations by status.",
		},
		[]string{"service", "status"},
	)
	agentRunDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gaa",
			Subsystem: "agent",
			Name:      "run_duration_seconds",
			Help:      "Agent invocation duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service"},
	)
	agentDelegations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gaa",
			Subsystem: "agent",
			Name:      "delegations_per_run",
			Help:      "Distribution of delegated specialist calls per invocation.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6},
		},
		[]string{"service"},
	)
	delegationCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gaa",
			Subsystem: "agent",
			Name:      "delegation_calls_total",
			Help:      "Total delegated specialist calls.",
		},
		[]string{"service"},
	)
	modelTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gaa",
			Subsystem: "model",
			Name:      "tokens_total",
			Help:      "Model token usage by direction.",
		},
		[]string{"service", "direction"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		agentRunsTotal,
		agentRunDuration,
		agentDelegations,
		delegationCallsTotal,
		modelTokensTotal,
	)

	return &ServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		agentRunsTotal:       agentRunsTotal,
		agentRunDuration:     agentRunDuration,
		agentDelegations:     agentDelegations,
		delegationCallsTotal: delegationCallsTotal,
		modelTokensTotal:     modelTokensTotal,
	}
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Memory creates hook/store counters registered on the same registry.
func (m *ServerMetrics) Memory(service string) *MemoryMetrics {
	return newMemoryMetrics(m.registry, service)
}

func (m *ServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *ServerMetrics) RecordAgentRun(service, status string, delegations int, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.agentRunsTotal.WithLabelValues(service, status).Inc()
	m.agentRunDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.agentDelegations.WithLabelValues(service).Observe(float64(delegations))
	if delegations > 0 {
		m.delegationCallsTotal.WithLabelValues(service).Add(float64(delegations))
	}
}

func (m *ServerMetrics) RecordTokenUsage(service string, inputTokens, outputTokens int) {
	if inputTokens > 0 {
		m.modelTokensTotal.WithLabelValues(service, "in").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.modelTokensTotal.WithLabelValues(service, "out").Add(float64(outputTokens))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}

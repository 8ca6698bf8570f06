package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MemoryMetrics tracks memory store operations performed by the lifecycle
// hooks. Memory failures never fail a turn, so these counters are the main
// signal that a store is degraded.
type MemoryMetrics struct {
	service string

	eventWriteTotal    *prometheus.CounterVec
	eventWriteDuration *prometheus.HistogramVec
	turnLoadDuration   prometheus.Histogram
}

func newMemoryMetrics(registry *prometheus.Registry, service string) *MemoryMetrics {
	eventWriteTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gaa",
			Subsystem: "memory",
			Name:      "event_writes_total",
			Help:      "Total memory event writes by status.",
		},
		[]string{"service", "status"},
	)
	eventWriteDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gaa",
			Subsystem: "memory",
			Name:      "event_write_duration_seconds",
			Help:      "Memory event write duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	turnLoadDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gaa",
			Subsystem: "memory",
			Name:      "turn_load_duration_seconds",
			Help:      "Duration of short-term turn loads in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(eventWriteTotal, eventWriteDuration, turnLoadDuration)

	return &MemoryMetrics{
		service:            service,
		eventWriteTotal:    eventWriteTotal,
		eventWriteDuration: eventWriteDuration,
		turnLoadDuration:   turnLoadDuration,
	}
}

func (m *MemoryMetrics) FinishEventWrite(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.eventWriteTotal.WithLabelValues(m.service, status).Inc()
	m.eventWriteDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *MemoryMetrics) ObserveTurnLoad(duration time.Duration) {
	m.turnLoadDuration.Observe(duration.Seconds())
}

// Package observability exposes Prometheus metrics and the HTTP endpoint
// that serves them. Metric registration is lazy and idempotent: recorders
// register on first use, so packages can record unconditionally and tests
// never fight over the default registry.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fathomline/sounder/types"
)

var (
	registerOnce sync.Once

	opsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sounder",
			Name:      "ops_total",
			Help:      "Operation attempts by kind and outcome.",
		},
		[]string{"op", "outcome"},
	)
	opDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sounder",
			Name:      "op_duration_seconds",
			Help:      "Operation latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	usersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sounder",
			Name:      "users_active",
			Help:      "Simulated clients currently running.",
		},
	)
	serverConnsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sounder",
			Subsystem: "server",
			Name:      "connections_active",
			Help:      "Connections currently served.",
		},
	)
	serverConnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sounder",
			Subsystem: "server",
			Name:      "connections_total",
			Help:      "Connections accepted since start.",
		},
	)
	serverFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sounder",
			Subsystem: "server",
			Name:      "frames_total",
			Help:      "Frames handled by the server, by result.",
		},
		[]string{"result"},
	)
)

// Server frame results.
const (
	FrameResultPong         = "pong"
	FrameResultUnrecognized = "unrecognized"
	FrameResultReadError    = "read_error"
	FrameResultWriteError   = "write_error"
)

// RegisterMetrics registers all metric vecs with the default registry.
// Safe to call any number of times.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			opsTotal,
			opDuration,
			usersActive,
			serverConnsActive,
			serverConnsTotal,
			serverFramesTotal,
		)
	})
}

// RecordOutcome mirrors one Outcome into the op counters and latency
// histogram. Usable directly as a types.ReporterFunc target.
func RecordOutcome(o types.Outcome) {
	RegisterMetrics()
	outcome := "failure"
	if o.OK {
		outcome = "success"
	}
	opsTotal.WithLabelValues(string(o.Op), outcome).Inc()
	opDuration.WithLabelValues(string(o.Op)).Observe(o.Elapsed.Seconds())
}

// SetUsersActive reports the current simulated-client count.
func SetUsersActive(n int64) {
	RegisterMetrics()
	usersActive.Set(float64(n))
}

// IncServerConnection records an accepted connection.
func IncServerConnection() {
	RegisterMetrics()
	serverConnsTotal.Inc()
	serverConnsActive.Inc()
}

// DecServerConnection records a closed connection.
func DecServerConnection() {
	RegisterMetrics()
	serverConnsActive.Dec()
}

// RecordServerFrame records one handled frame by result.
func RecordServerFrame(result string) {
	RegisterMetrics()
	serverFramesTotal.WithLabelValues(result).Inc()
}

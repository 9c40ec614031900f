package metrics

import (
	"strconv"
	"time"

	"github.com/brettbedarf/tecnicofs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sources label commands by where they came from
const (
	SourceBatch  = "batch"
	SourceServer = "server"
)

// EngineMetrics observes command execution. A nil EngineMetrics is never
// passed around; use [NewNoopEngineMetrics] instead.
type EngineMetrics interface {
	// RecordCommand records one executed command and its outcome
	RecordCommand(source string, op tecnicofs.Opcode, duration time.Duration, err error)

	// RecordMalformed counts a command rejected before execution
	RecordMalformed(source string)

	// SetQueueDepth reports the number of buffered commands
	SetQueueDepth(n int)

	// SetLiveNodes reports the number of live nodes, root included
	SetLiveNodes(n int)
}

type engineMetrics struct {
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	malformedTotal  *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	liveNodes       prometheus.Gauge
}

// NewEngineMetrics creates Prometheus-backed metrics on the global registry,
// or a no-op implementation when metrics are disabled.
func NewEngineMetrics() EngineMetrics {
	if !IsEnabled() {
		return NewNoopEngineMetrics()
	}
	return NewEngineMetricsWith(GetRegistry())
}

// NewEngineMetricsWith registers the engine metrics on reg
func NewEngineMetricsWith(reg prometheus.Registerer) EngineMetrics {
	return &engineMetrics{
		commandsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tecnicofs_commands_total",
				Help: "Total number of executed commands by source, operation and result code",
			},
			[]string{"source", "op", "status", "code"},
		),
		commandDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tecnicofs_command_duration_seconds",
				Help:    "Time spent executing a command, lock waits included",
				Buckets: prometheus.ExponentialBuckets(0.000001, 10, 7), // 1us .. 1s
			},
			[]string{"source", "op"},
		),
		malformedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tecnicofs_malformed_commands_total",
				Help: "Total number of commands rejected as malformed",
			},
			[]string{"source"},
		),
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "tecnicofs_queue_depth",
				Help: "Current number of commands waiting in the intake queue",
			},
		),
		liveNodes: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "tecnicofs_live_nodes",
				Help: "Current number of live nodes in the tree, root included",
			},
		),
	}
}

func (m *engineMetrics) RecordCommand(source string, op tecnicofs.Opcode, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	code := strconv.Itoa(int(tecnicofs.ResultCode(0, err)))
	m.commandsTotal.WithLabelValues(source, op.String(), status, code).Inc()
	m.commandDuration.WithLabelValues(source, op.String()).Observe(duration.Seconds())
}

func (m *engineMetrics) RecordMalformed(source string) {
	m.malformedTotal.WithLabelValues(source).Inc()
}

func (m *engineMetrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

func (m *engineMetrics) SetLiveNodes(n int) {
	m.liveNodes.Set(float64(n))
}

type noopEngineMetrics struct{}

// NewNoopEngineMetrics returns metrics that record nothing
func NewNoopEngineMetrics() EngineMetrics {
	return noopEngineMetrics{}
}

func (noopEngineMetrics) RecordCommand(string, tecnicofs.Opcode, time.Duration, error) {}
func (noopEngineMetrics) RecordMalformed(string)                                       {}
func (noopEngineMetrics) SetQueueDepth(int)                                            {}
func (noopEngineMetrics) SetLiveNodes(int)                                             {}

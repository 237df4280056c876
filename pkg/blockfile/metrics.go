package blockfile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label names.
const (
	LabelOp     = "op"
	LabelStatus = "status"
)

// Operation names used in logs, spans and metric labels.
const (
	OpOpen     = "open"
	OpRead     = "read"
	OpWrite    = "write"
	OpDelete   = "delete"
	OpErase    = "erase"
	OpGrow     = "grow"
	OpInspect  = "inspect"
	OpSnapshot = "snapshot"
	OpSync     = "sync"
	OpClose    = "close"
)

// Metrics exposes Prometheus metrics for one or more engines.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
	blocks     *prometheus.CounterVec
	grown      prometheus.Counter
	blockCount prometheus.Gauge
	freeCount  prometheus.Gauge
}

// NewMetrics creates engine metrics and registers them with registry.
// If registry is nil the metrics are created but not registered.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "blockfile",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total number of engine operations by result",
			},
			[]string{LabelOp, LabelStatus},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "blockfile",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Duration of engine operations",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{LabelOp},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "blockfile",
				Subsystem: "engine",
				Name:      "payload_bytes_total",
				Help:      "Payload bytes read or written",
			},
			[]string{LabelOp},
		),
		blocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "blockfile",
				Subsystem: "engine",
				Name:      "blocks_touched_total",
				Help:      "Blocks read, written or freed",
			},
			[]string{LabelOp},
		),
		grown: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "blockfile",
				Subsystem: "engine",
				Name:      "grown_blocks_total",
				Help:      "Blocks appended by file growth",
			},
		),
		blockCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "blockfile",
				Subsystem: "engine",
				Name:      "blocks",
				Help:      "Number of blocks in the storage file",
			},
		),
		freeCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "blockfile",
				Subsystem: "engine",
				Name:      "free_blocks",
				Help:      "Number of free blocks in the storage file",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.operations,
			m.duration,
			m.bytes,
			m.blocks,
			m.grown,
			m.blockCount,
			m.freeCount,
		)
	}
	return m
}

// ObserveOperation records the outcome and latency of one operation.
func (m *Metrics) ObserveOperation(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, errorClass(err)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveTransfer records payload bytes and blocks moved by op.
func (m *Metrics) ObserveTransfer(op string, blocks int, bytes int64) {
	if m == nil {
		return
	}
	m.blocks.WithLabelValues(op).Add(float64(blocks))
	if bytes > 0 {
		m.bytes.WithLabelValues(op).Add(float64(bytes))
	}
}

// ObserveGrow records n blocks appended to the file.
func (m *Metrics) ObserveGrow(n int) {
	if m == nil {
		return
	}
	m.grown.Add(float64(n))
}

// SetBlocks publishes the current block and free block counts.
func (m *Metrics) SetBlocks(total uint32, free int) {
	if m == nil {
		return
	}
	m.blockCount.Set(float64(total))
	m.freeCount.Set(float64(free))
}

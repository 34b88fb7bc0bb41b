// Package metrics exposes prometheus collectors for engine and tool
// observability. The Collector satisfies both workflow.MetricsSink and
// tools.Observer, so one instance covers a whole deployment.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/workflow"
)

// Collector holds the engine's prometheus metrics.
type Collector struct {
	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram

	nodeExecutionsTotal *prometheus.CounterVec
	nodeDuration        *prometheus.HistogramVec

	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a collector registered with the given registerer; a
// nil registerer uses the default one.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	return &Collector{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of workflow runs",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Workflow run duration in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
		nodeExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_executions_total",
				Help:      "Total number of node executions",
			},
			[]string{"node_type", "success"},
		),
		nodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_duration_seconds",
				Help:      "Node execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"node_type"},
		),
		toolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool calls",
			},
			[]string{"tool_id", "success"},
		),
		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Tool call duration in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"tool_id"},
		),
		logger: logger.With(zap.String("component", "metrics")),
	}
}

// ObserveRun implements workflow.MetricsSink.
func (c *Collector) ObserveRun(status workflow.RunStatus, duration time.Duration) {
	c.runsTotal.WithLabelValues(string(status)).Inc()
	c.runDuration.Observe(duration.Seconds())
}

// ObserveNode implements workflow.MetricsSink.
func (c *Collector) ObserveNode(nodeType string, success bool, duration time.Duration) {
	c.nodeExecutionsTotal.WithLabelValues(nodeType, strconv.FormatBool(success)).Inc()
	c.nodeDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
}

// ObserveToolCall implements tools.Observer.
func (c *Collector) ObserveToolCall(toolID string, duration time.Duration, success bool) {
	c.toolCallsTotal.WithLabelValues(toolID, strconv.FormatBool(success)).Inc()
	c.toolCallDuration.WithLabelValues(toolID).Observe(duration.Seconds())
}

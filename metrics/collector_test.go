package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/nodeflow/workflow"
)

func newTestCollector() (*Collector, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewCollector("nodeflow", reg, nil), reg
}

func TestCollector_ObserveRun(t *testing.T) {
	c, _ := newTestCollector()

	c.ObserveRun(workflow.RunCompleted, 120*time.Millisecond)
	c.ObserveRun(workflow.RunCompleted, 80*time.Millisecond)
	c.ObserveRun(workflow.RunError, 10*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.runsTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.runsTotal.WithLabelValues("error")))
}

func TestCollector_ObserveNode(t *testing.T) {
	c, _ := newTestCollector()

	c.ObserveNode("http-request", true, 50*time.Millisecond)
	c.ObserveNode("http-request", false, 5*time.Millisecond)
	c.ObserveNode("transform", true, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.nodeExecutionsTotal.WithLabelValues("http-request", "true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.nodeExecutionsTotal.WithLabelValues("http-request", "false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.nodeExecutionsTotal.WithLabelValues("transform", "true")))
}

func TestCollector_ObserveToolCall(t *testing.T) {
	c, _ := newTestCollector()

	c.ObserveToolCall("search", 30*time.Millisecond, true)
	c.ObserveToolCall("search", 30*time.Millisecond, true)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("search", "true")))
}

type tickNode struct {
	workflow.BaseNode
}

func (n *tickNode) Execute(context.Context, map[string]any, *workflow.ExecutionContext) workflow.ExecutionResult {
	return workflow.NewResult("ok")
}

func TestCollector_WiredIntoEngine(t *testing.T) {
	c, _ := newTestCollector()

	node := &tickNode{BaseNode: workflow.NewBaseNode("tick", "tick", "tick-type", nil, nil)}
	wf, err := workflow.NewBuilder("wf-1", "metrics").AddNode(node).Build()
	require.NoError(t, err)

	_, err = workflow.NewEngine(workflow.WithMetrics(c)).Run(context.Background(), wf)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.runsTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.nodeExecutionsTotal.WithLabelValues("tick-type", "true")))
}

package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/expression"
	"github.com/BaSui01/nodeflow/types"
)

// RunStatus is the overall outcome of one run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunError     RunStatus = "error"
)

// NodeError is one entry in a run's ordered error list.
type NodeError struct {
	NodeID string       `json:"node_id"`
	Err    *types.Error `json:"error"`
}

// RunResult is the outcome of one run: a per-node result map plus an
// ordered error list. Nothing is cached across runs.
type RunResult struct {
	RunID      string                     `json:"run_id"`
	WorkflowID string                     `json:"workflow_id"`
	Status     RunStatus                  `json:"status"`
	Results    map[string]ExecutionResult `json:"results"`
	Skipped    []string                   `json:"skipped,omitempty"`
	Errors     []NodeError                `json:"errors,omitempty"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
}

// MetricsSink receives engine observations, e.g. the metrics package's
// prometheus collector.
type MetricsSink interface {
	ObserveRun(status RunStatus, duration time.Duration)
	ObserveNode(nodeType string, success bool, duration time.Duration)
}

// Engine executes a workflow once per Run call: nodes run strictly in
// topological order, each node's inputs are gathered from completed
// upstream outputs, settings are resolved, and failures are contained in
// the run's result structures.
type Engine struct {
	logger  *zap.Logger
	metrics MetricsSink

	nodeTimeout  time.Duration
	maxRetries   int
	retryBackoff time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(sink MetricsSink) Option {
	return func(e *Engine) { e.metrics = sink }
}

// WithNodeTimeout bounds each node execution; zero disables the timeout.
func WithNodeTimeout(timeout time.Duration) Option {
	return func(e *Engine) { e.nodeTimeout = timeout }
}

// WithRetry re-invokes a failing node up to maxRetries extra attempts with
// linear backoff before surfacing the final failure.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(e *Engine) {
		e.maxRetries = maxRetries
		e.retryBackoff = backoff
	}
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "engine"))
	return e
}

// Run executes the workflow once. It returns an error only when the run
// cannot start (nil workflow, or a cycle found by the defensive pre-run
// re-check); all node-level failures are contained in the RunResult.
func (e *Engine) Run(ctx context.Context, wf *Workflow) (*RunResult, error) {
	return e.RunWithMetadata(ctx, wf, nil)
}

// RunWithMetadata executes the workflow once with a metadata bag reachable
// from settings via {{$context.<path>}}.
func (e *Engine) RunWithMetadata(ctx context.Context, wf *Workflow, metadata map[string]any) (*RunResult, error) {
	if wf == nil {
		return nil, types.NewError(types.ErrWorkflow, "workflow is nil")
	}

	order, err := wf.ExecutionOrder()
	if err != nil {
		return nil, types.Errorf(types.ErrWorkflow, "workflow %s is not runnable", wf.ID()).WithCause(err)
	}

	run := &RunResult{
		RunID:      uuid.NewString(),
		WorkflowID: wf.ID(),
		Status:     RunCompleted,
		Results:    make(map[string]ExecutionResult, len(order)),
		StartedAt:  time.Now(),
	}

	execCtx := NewExecutionContext(wf.ID(), run.RunID)
	for k, v := range metadata {
		execCtx.Metadata[k] = v
	}

	e.logger.Info("run started",
		zap.String("workflow_id", wf.ID()),
		zap.String("run_id", run.RunID),
		zap.Int("nodes", len(order)))

	failed := make(map[string]bool)
	skipped := make(map[string]bool)
	halted := false

	for _, nodeID := range order {
		if halted {
			break
		}
		if ctx.Err() != nil {
			run.Status = RunError
			run.Errors = append(run.Errors, NodeError{
				NodeID: nodeID,
				Err:    types.NewError(types.ErrCancelled, "run cancelled").WithCause(ctx.Err()),
			})
			break
		}

		node, _ := wf.Node(nodeID)
		incoming := wf.IncomingConnections(nodeID)

		if e.shouldSkip(nodeID, incoming, execCtx, failed, skipped) {
			skipped[nodeID] = true
			run.Skipped = append(run.Skipped, nodeID)
			e.logger.Debug("node skipped",
				zap.String("run_id", run.RunID),
				zap.String("node_id", nodeID))
			continue
		}

		inputs := e.gatherInputs(incoming, execCtx)
		execCtx.CurrentNode = nodeID

		result := e.executeNode(ctx, node, inputs, execCtx)
		run.Results[nodeID] = result

		if result.Success {
			// Write-once publication; topological order guarantees
			// every write happens before any dependent read.
			execCtx.Results[nodeID] = result.Data
			continue
		}

		failed[nodeID] = true
		run.Status = RunError
		run.Errors = append(run.Errors, NodeError{
			NodeID: nodeID,
			Err:    types.Errorf(types.ErrExecution, "node %s failed: %s", nodeID, result.Error).WithNode(nodeID),
		})
		if wf.ErrorPolicy() == PolicyStop {
			halted = true
		}
	}

	run.FinishedAt = time.Now()
	if e.metrics != nil {
		e.metrics.ObserveRun(run.Status, run.FinishedAt.Sub(run.StartedAt))
	}

	e.logger.Info("run finished",
		zap.String("run_id", run.RunID),
		zap.String("status", string(run.Status)),
		zap.Int("executed", len(run.Results)),
		zap.Int("skipped", len(run.Skipped)),
		zap.Int("errors", len(run.Errors)))

	return run, nil
}

// shouldSkip decides whether a node must not execute this run: either an
// upstream dependency failed or was skipped, or all of its incoming
// connections are gated off (branch not taken, guard falsy).
func (e *Engine) shouldSkip(nodeID string, incoming []*Connection, execCtx *ExecutionContext, failed, skipped map[string]bool) bool {
	if len(incoming) == 0 {
		return false
	}
	for _, conn := range incoming {
		if failed[conn.SourceNodeID] || skipped[conn.SourceNodeID] {
			return true
		}
	}
	for _, conn := range incoming {
		if e.connectionActive(conn, execCtx) {
			return false
		}
	}
	return true
}

// connectionActive reports whether a connection delivers data this run:
// its source has produced output, its branch index (if any) matches the
// branch the source selected, and its guard (if any) resolves truthy.
func (e *Engine) connectionActive(conn *Connection, execCtx *ExecutionContext) bool {
	output, produced := execCtx.Results[conn.SourceNodeID]
	if !produced {
		return false
	}

	if conn.BranchIndex != nil {
		branch, ok := selectedBranch(output)
		if !ok || branch != *conn.BranchIndex {
			return false
		}
	}

	if conn.Guard != "" {
		resolver := expression.NewResolver(e.logger)
		resolved := resolver.ResolveString(conn.Guard, &expression.Env{
			Results: execCtx.Results,
			Context: execCtx.Metadata,
		})
		if !truthy(resolved) {
			return false
		}
	}
	return true
}

// selectedBranch extracts the branch index a fan-out node published on its
// output, e.g. {"branch": 0} from a condition node.
func selectedBranch(output any) (int, bool) {
	m, ok := output.(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := m["branch"].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func truthy(s string) bool {
	switch s {
	case "", "false", "0", "null":
		return false
	}
	return true
}

// gatherInputs collects the node's inputs from its active incoming
// connections. Each input is keyed by the connection's target port, or the
// source node id when no port is named; when a source never produced
// output the input is simply absent, never defaulted.
func (e *Engine) gatherInputs(incoming []*Connection, execCtx *ExecutionContext) map[string]any {
	inputs := make(map[string]any, len(incoming))
	for _, conn := range incoming {
		if !e.connectionActive(conn, execCtx) {
			continue
		}
		value := execCtx.Results[conn.SourceNodeID]
		if conn.SourcePort != "" {
			value = expression.Lookup(value, conn.SourcePort)
		}
		key := conn.TargetPort
		if key == "" {
			key = conn.SourceNodeID
		}
		inputs[key] = value
	}
	return inputs
}

// executeNode drives one node through its status machine: resolve dynamic
// settings, execute with the retry and timeout wrappers, and capture any
// failure as a result.
func (e *Engine) executeNode(ctx context.Context, node Node, inputs map[string]any, execCtx *ExecutionContext) ExecutionResult {
	state, stateful := node.(instanceState)
	if stateful {
		state.setStatus(StatusRunning)
	}

	if resolver, ok := node.(settingsResolver); ok {
		resolved := resolver.ResolveDynamicSettings(inputs, execCtx)
		if stateful {
			state.setResolvedSettings(resolved)
		}
	}

	start := time.Now()
	result := e.executeWithRetry(ctx, node, inputs, execCtx)
	duration := time.Since(start)

	if stateful {
		state.markExecuted()
		if result.Success {
			state.setStatus(StatusCompleted)
		} else {
			state.setStatus(StatusError)
		}
	}
	if e.metrics != nil {
		e.metrics.ObserveNode(node.Type(), result.Success, duration)
	}

	if result.Success {
		e.logger.Debug("node completed",
			zap.String("node_id", node.ID()),
			zap.String("node_type", node.Type()),
			zap.Duration("duration", duration))
	} else {
		e.logger.Warn("node failed",
			zap.String("node_id", node.ID()),
			zap.String("node_type", node.Type()),
			zap.String("error", result.Error),
			zap.Duration("duration", duration))
	}
	return result
}

// executeWithRetry re-invokes a failing execution up to the configured
// maximum with linear backoff.
func (e *Engine) executeWithRetry(ctx context.Context, node Node, inputs map[string]any, execCtx *ExecutionContext) ExecutionResult {
	result := e.executeOnce(ctx, node, inputs, execCtx)
	for attempt := 1; attempt <= e.maxRetries && !result.Success; attempt++ {
		backoff := time.Duration(attempt) * e.retryBackoff
		e.logger.Debug("retrying node",
			zap.String("node_id", node.ID()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return NewErrorResult(types.NewError(types.ErrCancelled, "run cancelled during backoff"))
		}
		result = e.executeOnce(ctx, node, inputs, execCtx)
	}
	if !result.Success && e.maxRetries > 0 {
		result.Error = types.Errorf(types.ErrRetryExhausted,
			"failed after %d attempts: %s", e.maxRetries+1, result.Error).Error()
	}
	return result
}

// executeOnce races one execution against the per-node timeout and
// converts panics and overruns into failed results.
func (e *Engine) executeOnce(ctx context.Context, node Node, inputs map[string]any, execCtx *ExecutionContext) ExecutionResult {
	if e.nodeTimeout <= 0 {
		return e.invoke(ctx, node, inputs, execCtx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.nodeTimeout)
	defer cancel()

	done := make(chan ExecutionResult, 1)
	go func() {
		done <- e.invoke(timeoutCtx, node, inputs, execCtx)
	}()

	select {
	case result := <-done:
		return result
	case <-timeoutCtx.Done():
		return NewErrorResult(types.Errorf(types.ErrTimeout,
			"node %s timed out after %s", node.ID(), e.nodeTimeout).WithNode(node.ID()))
	}
}

// invoke calls Execute, containing panics so a node crash never crosses
// the engine boundary.
func (e *Engine) invoke(ctx context.Context, node Node, inputs map[string]any, execCtx *ExecutionContext) (result ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = NewErrorResult(fmt.Errorf("node panicked: %v", r))
		}
	}()
	return node.Execute(ctx, inputs, execCtx)
}

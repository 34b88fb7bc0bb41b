package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/expression"
)

// NodeStatus is the per-node execution state machine:
// idle -> running -> completed | error, re-enterable on a subsequent run.
type NodeStatus string

const (
	StatusIdle      NodeStatus = "idle"
	StatusRunning   NodeStatus = "running"
	StatusCompleted NodeStatus = "completed"
	StatusError     NodeStatus = "error"
)

// ExecutionContext is the per-run state threaded through node execution.
type ExecutionContext struct {
	WorkflowID  string
	ExecutionID string
	CurrentNode string
	// Results maps an upstream node id to its produced output. Each entry
	// is written exactly once, immediately after that node completes.
	Results map[string]any
	// Metadata is the run's free-form metadata bag, addressable from
	// settings via {{$context.<path>}}.
	Metadata map[string]any
}

// NewExecutionContext creates a context for one run of a workflow.
func NewExecutionContext(workflowID, executionID string) *ExecutionContext {
	return &ExecutionContext{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Results:     make(map[string]any),
		Metadata:    make(map[string]any),
	}
}

// ExecutionResult is the uniform outcome of one node execution.
type ExecutionResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewResult wraps produced data in a successful result.
func NewResult(data any) ExecutionResult {
	return ExecutionResult{Success: true, Data: data}
}

// NewErrorResult wraps a failure in a result.
func NewErrorResult(err error) ExecutionResult {
	return ExecutionResult{Success: false, Error: err.Error()}
}

// Node is the unit-of-work contract. Execute is the only method node types
// must implement beyond identification; failures inside Execute are
// captured by the engine and never cross the node boundary as panics.
type Node interface {
	ID() string
	Name() string
	Type() string
	Execute(ctx context.Context, inputs map[string]any, execCtx *ExecutionContext) ExecutionResult
}

// instanceState is implemented by nodes embedding BaseNode; the engine uses
// it to drive the status machine and record resolution results.
type instanceState interface {
	Status() NodeStatus
	setStatus(NodeStatus)
	markExecuted()
	setResolvedSettings(map[string]any)
}

// settingsResolver is implemented by nodes whose settings may contain
// expressions.
type settingsResolver interface {
	ResolveDynamicSettings(inputs map[string]any, execCtx *ExecutionContext) map[string]any
}

// BaseNode carries the common node instance state: a deep-cloned raw
// settings copy as source of truth, the per-run resolved settings, status,
// and execution count. Node types embed it and implement Execute.
type BaseNode struct {
	id       string
	name     string
	nodeType string

	rawSettings      map[string]any
	resolvedSettings map[string]any

	status         NodeStatus
	executionCount int

	resolver *expression.Resolver
	logger   *zap.Logger
}

// NewBaseNode creates the shared node state. The settings are deep-cloned;
// the caller's map is never referenced again.
func NewBaseNode(id, name, nodeType string, settings map[string]any, logger *zap.Logger) BaseNode {
	if logger == nil {
		logger = zap.NewNop()
	}
	if name == "" {
		name = id
	}
	return BaseNode{
		id:          id,
		name:        name,
		nodeType:    nodeType,
		rawSettings: expression.CloneSettings(settings),
		status:      StatusIdle,
		resolver:    expression.NewResolver(logger),
		logger:      logger,
	}
}

// ID returns the node's workflow-unique identifier.
func (n *BaseNode) ID() string { return n.id }

// Name returns the display name.
func (n *BaseNode) Name() string { return n.name }

// Type returns the registered type tag.
func (n *BaseNode) Type() string { return n.nodeType }

// Status returns the current lifecycle status.
func (n *BaseNode) Status() NodeStatus { return n.status }

// ExecutionCount returns how many times this instance has executed.
func (n *BaseNode) ExecutionCount() int { return n.executionCount }

// RawSettings returns a deep copy of the raw, unresolved settings.
func (n *BaseNode) RawSettings() map[string]any {
	return expression.CloneSettings(n.rawSettings)
}

// ResolvedSettings returns the settings produced by the last resolution
// pass, or nil before the first run.
func (n *BaseNode) ResolvedSettings() map[string]any {
	return n.resolvedSettings
}

// Logger exposes the node's logger to embedding types.
func (n *BaseNode) Logger() *zap.Logger { return n.logger }

// ResolveDynamicSettings walks a fresh clone of the raw settings tree and
// rewrites every expression-bearing string against the run's data. The raw
// copy is never mutated; evaluation failures degrade to the original
// string.
func (n *BaseNode) ResolveDynamicSettings(inputs map[string]any, execCtx *ExecutionContext) map[string]any {
	env := &expression.Env{
		Input:    inputs,
		Settings: n.rawSettings,
	}
	if execCtx != nil {
		env.Results = execCtx.Results
		env.Context = execCtx.Metadata
	}
	return n.resolver.ResolveSettings(expression.CloneSettings(n.rawSettings), env)
}

func (n *BaseNode) setStatus(status NodeStatus) { n.status = status }

func (n *BaseNode) markExecuted() { n.executionCount++ }

func (n *BaseNode) setResolvedSettings(settings map[string]any) {
	n.resolvedSettings = settings
}

// Package nodeflow provides a top-level convenience entry point for building
// and running workflows with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/nodeflow"
//
//	wf, err := nodeflow.NewBuilder("wf-1", "demo").
//	    AddNode(nodes.NewTriggerNode("start", payload, nil)).
//	    Build()
//	run, err := nodeflow.Run(ctx, wf)
//
// This is a thin wrapper around the workflow package; use it when you prefer
// the shorter import path.
package nodeflow

import (
	"context"

	"github.com/BaSui01/nodeflow/workflow"
)

// Re-export the core workflow surface so simple callers never need to
// import workflow/ directly.

type (
	Workflow        = workflow.Workflow
	Connection      = workflow.Connection
	Node            = workflow.Node
	Engine          = workflow.Engine
	RunResult       = workflow.RunResult
	ExecutionResult = workflow.ExecutionResult
	Definition      = workflow.Definition
	ErrorPolicy     = workflow.ErrorPolicy
)

const (
	PolicyStop     = workflow.PolicyStop
	PolicyContinue = workflow.PolicyContinue
)

// New creates an empty workflow.
func New(id, name string) *Workflow { return workflow.New(id, name) }

// NewBuilder starts a fluent workflow builder.
func NewBuilder(id, name string) *workflow.Builder { return workflow.NewBuilder(id, name) }

// NewEngine creates an execution engine.
var NewEngine = workflow.NewEngine

// Run executes a workflow once with a default engine.
func Run(ctx context.Context, wf *Workflow) (*RunResult, error) {
	return workflow.NewEngine().Run(ctx, wf)
}

// FromJSON loads a workflow from its serialized JSON form using the default
// node registry.
func FromJSON(data []byte) (*Workflow, error) {
	def, err := workflow.DefinitionFromJSON(data)
	if err != nil {
		return nil, err
	}
	return workflow.FromDefinition(def, workflow.DefaultRegistry())
}

// FromYAML loads a workflow from its serialized YAML form using the default
// node registry.
func FromYAML(data []byte) (*Workflow, error) {
	def, err := workflow.DefinitionFromYAML(data)
	if err != nil {
		return nil, err
	}
	return workflow.FromDefinition(def, workflow.DefaultRegistry())
}

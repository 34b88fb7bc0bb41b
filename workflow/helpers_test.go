package workflow

import (
	"context"
)

// funcNode is the test node type: BaseNode state plus a pluggable execute
// function. A nil function echoes the resolved settings.
type funcNode struct {
	BaseNode
	fn func(ctx context.Context, inputs map[string]any, execCtx *ExecutionContext) ExecutionResult
}

func newFuncNode(id string, settings map[string]any,
	fn func(ctx context.Context, inputs map[string]any, execCtx *ExecutionContext) ExecutionResult) *funcNode {
	return &funcNode{
		BaseNode: NewBaseNode(id, id, "test-type", settings, nil),
		fn:       fn,
	}
}

func (n *funcNode) Execute(ctx context.Context, inputs map[string]any, execCtx *ExecutionContext) ExecutionResult {
	if n.fn == nil {
		return NewResult(n.ResolvedSettings())
	}
	return n.fn(ctx, inputs, execCtx)
}

// passthroughNode produces a fixed output.
func outputNode(id string, output any) *funcNode {
	return newFuncNode(id, nil, func(context.Context, map[string]any, *ExecutionContext) ExecutionResult {
		return NewResult(output)
	})
}

// inputEchoNode outputs the inputs it was handed.
func inputEchoNode(id string) *funcNode {
	return newFuncNode(id, nil, func(_ context.Context, inputs map[string]any, _ *ExecutionContext) ExecutionResult {
		return NewResult(inputs)
	})
}

// testRegistry returns a registry with the test node type registered.
func testRegistry() *Registry {
	reg := NewRegistry()
	reg.MustRegister("test-type", func(id string, settings map[string]any) (Node, error) {
		return newFuncNode(id, settings, nil), nil
	})
	return reg
}

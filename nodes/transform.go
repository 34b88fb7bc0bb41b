package nodes

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/expression"
	"github.com/BaSui01/nodeflow/workflow"
)

// TypeTransform is the registered type tag for transform nodes.
const TypeTransform = "transform"

// TransformNode reshapes run data. Its mapping values are ordinary
// settings, so expressions inside them are already rewritten against
// upstream results by the time Execute runs; the node's own work is
// selection and merging.
//
// Settings:
//   - mapping: map of output field to value (usually expression strings)
//   - pick: list of input keys to copy through
//   - includeInput: bool, merge all inputs under their connection keys
type TransformNode struct {
	workflow.BaseNode
}

// NewTransformNode creates a transform node.
func NewTransformNode(id string, settings map[string]any, logger *zap.Logger) *TransformNode {
	return &TransformNode{
		BaseNode: workflow.NewBaseNode(id, stringSetting(settings, "name", id), TypeTransform, settings, logger),
	}
}

func (n *TransformNode) Execute(_ context.Context, inputs map[string]any, _ *workflow.ExecutionContext) workflow.ExecutionResult {
	settings := n.ResolvedSettings()
	if settings == nil {
		settings = n.RawSettings()
	}

	out := make(map[string]any)

	if boolSetting(settings, "includeInput", false) {
		for k, v := range inputs {
			out[k] = expression.Clone(v)
		}
	}
	if pick, ok := settings["pick"].([]any); ok {
		for _, key := range pick {
			name, ok := key.(string)
			if !ok {
				continue
			}
			if v, exists := inputs[name]; exists {
				out[name] = expression.Clone(v)
			}
		}
	}
	for k, v := range mapSetting(settings, "mapping") {
		out[k] = expression.Clone(v)
	}

	// With no shaping configured the node is a passthrough.
	if len(out) == 0 && settings["mapping"] == nil && settings["pick"] == nil {
		for k, v := range inputs {
			out[k] = expression.Clone(v)
		}
	}

	return workflow.NewResult(out)
}

package nodes

import (
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/llm"
	"github.com/BaSui01/nodeflow/llm/tools"
	"github.com/BaSui01/nodeflow/workflow"
)

func init() {
	RegisterBuiltins(workflow.DefaultRegistry())
}

// RegisterBuiltins registers the self-contained node types. The agent type
// is excluded because it needs a provider; see RegisterAgent.
func RegisterBuiltins(reg *workflow.Registry) {
	reg.MustRegister(TypeTrigger, func(id string, settings map[string]any) (workflow.Node, error) {
		return NewTriggerNode(id, settings, nil), nil
	})
	reg.MustRegister(TypeHTTPRequest, func(id string, settings map[string]any) (workflow.Node, error) {
		return NewHTTPNode(id, settings, nil), nil
	})
	reg.MustRegister(TypeTransform, func(id string, settings map[string]any) (workflow.Node, error) {
		return NewTransformNode(id, settings, nil), nil
	})
	reg.MustRegister(TypeCondition, func(id string, settings map[string]any) (workflow.Node, error) {
		return NewConditionNode(id, settings, nil), nil
	})
}

// RegisterAgent registers the agent node type with its collaborators bound
// into the constructor, so serialized workflows can rebuild agent nodes.
func RegisterAgent(reg *workflow.Registry, provider llm.Provider, toolRegistry *tools.Registry, logger *zap.Logger) error {
	return reg.Register(TypeAgent, func(id string, settings map[string]any) (workflow.Node, error) {
		return NewAgentNode(id, settings, provider, toolRegistry, logger), nil
	})
}

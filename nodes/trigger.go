package nodes

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/workflow"
)

// TypeTrigger is the registered type tag for trigger nodes.
const TypeTrigger = "trigger"

// TriggerNode is the workflow entry point. It has no upstream dependencies
// and emits its configured payload, making run input addressable by
// downstream nodes through {{$result.<triggerID>.payload.<path>}}.
//
// Settings:
//   - payload: map, emitted as-is after expression resolution
type TriggerNode struct {
	workflow.BaseNode
	clock func() time.Time
}

// NewTriggerNode creates a trigger node.
func NewTriggerNode(id string, settings map[string]any, logger *zap.Logger) *TriggerNode {
	return &TriggerNode{
		BaseNode: workflow.NewBaseNode(id, stringSetting(settings, "name", id), TypeTrigger, settings, logger),
		clock:    time.Now,
	}
}

func (n *TriggerNode) Execute(_ context.Context, inputs map[string]any, _ *workflow.ExecutionContext) workflow.ExecutionResult {
	settings := n.ResolvedSettings()
	if settings == nil {
		settings = n.RawSettings()
	}

	payload := mapSetting(settings, "payload")
	if payload == nil {
		payload = map[string]any{}
	}
	// Inputs only arrive when a trigger is fired mid-graph; merge them in
	// without clobbering configured payload fields.
	for k, v := range inputs {
		if _, exists := payload[k]; !exists {
			payload[k] = v
		}
	}

	return workflow.NewResult(map[string]any{
		"payload":     payload,
		"triggeredAt": n.clock().UTC().Format(time.RFC3339),
	})
}

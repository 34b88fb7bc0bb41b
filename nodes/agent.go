package nodes

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/llm"
	"github.com/BaSui01/nodeflow/llm/tools"
	"github.com/BaSui01/nodeflow/workflow"
)

// TypeAgent is the registered type tag for agent nodes.
const TypeAgent = "agent"

// AgentNode delegates response generation to a model provider and executes
// any tool calls the model requests, bounded by maxToolCalls. Every tool
// invocation is appended to the per-execution history returned alongside
// the text.
//
// Settings:
//   - prompt: string, required (usually carries expressions)
//   - model: string passed through to the provider
//   - systemPrompt: string, optional leading system message
//   - temperature, maxTokens: sampling parameters
//   - toolsEnabled: bool (default true when a tool registry is attached)
//   - maxToolCalls: int budget for the call loop
type AgentNode struct {
	workflow.BaseNode
	provider llm.Provider
	registry *tools.Registry
}

// NewAgentNode creates an agent node bound to a provider and an optional
// tool registry.
func NewAgentNode(id string, settings map[string]any, provider llm.Provider, registry *tools.Registry, logger *zap.Logger) *AgentNode {
	return &AgentNode{
		BaseNode: workflow.NewBaseNode(id, stringSetting(settings, "name", id), TypeAgent, settings, logger),
		provider: provider,
		registry: registry,
	}
}

func (n *AgentNode) Execute(ctx context.Context, _ map[string]any, _ *workflow.ExecutionContext) workflow.ExecutionResult {
	if n.provider == nil {
		return workflow.NewErrorResult(fmt.Errorf("agent node %s: no provider configured", n.ID()))
	}

	settings := n.ResolvedSettings()
	if settings == nil {
		settings = n.RawSettings()
	}

	prompt := stringSetting(settings, "prompt", "")
	if prompt == "" {
		return workflow.NewErrorResult(fmt.Errorf("agent node %s: prompt is required", n.ID()))
	}

	var messages []llm.Message
	if system := stringSetting(settings, "systemPrompt", ""); system != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	req := &llm.ChatRequest{
		Model:       stringSetting(settings, "model", ""),
		Messages:    messages,
		Temperature: float32(floatSetting(settings, "temperature", 0)),
		MaxTokens:   intSetting(settings, "maxTokens", 0),
	}

	toolsEnabled := n.registry != nil && boolSetting(settings, "toolsEnabled", true)
	if toolsEnabled {
		req.Tools = n.registry.Schemas()
	}

	if !toolsEnabled || len(req.Tools) == 0 {
		resp, err := n.provider.Completion(ctx, req)
		if err != nil {
			return workflow.NewErrorResult(fmt.Errorf("agent node %s: %w", n.ID(), err))
		}
		return workflow.NewResult(agentOutput(resp, nil))
	}

	loop := tools.NewCallLoop(
		n.provider,
		tools.NewExecutor(n.registry, n.Logger()),
		tools.LoopConfig{MaxToolCalls: intSetting(settings, "maxToolCalls", 0)},
		n.Logger(),
	)
	resp, history, err := loop.Run(ctx, req)
	if err != nil {
		return workflow.NewErrorResult(fmt.Errorf("agent node %s: %w", n.ID(), err))
	}

	n.Logger().Debug("agent completed",
		zap.String("node_id", n.ID()),
		zap.Int("tool_calls", len(history)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return workflow.NewResult(agentOutput(resp, history))
}

func agentOutput(resp *llm.ChatResponse, history any) map[string]any {
	out := map[string]any{
		"response": resp.Text(),
		"model":    resp.Model,
		"usage": map[string]any{
			"promptTokens":     float64(resp.Usage.PromptTokens),
			"completionTokens": float64(resp.Usage.CompletionTokens),
			"totalTokens":      float64(resp.Usage.TotalTokens),
		},
	}
	if history != nil {
		out["toolCalls"] = history
	}
	return out
}

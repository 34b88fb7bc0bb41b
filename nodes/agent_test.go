package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/nodeflow/llm"
	"github.com/BaSui01/nodeflow/llm/tools"
	"github.com/BaSui01/nodeflow/types"
)

// scriptedProvider plays back canned responses in order and records the
// requests it saw.
type scriptedProvider struct {
	responses []*llm.ChatResponse
	requests  []*llm.ChatRequest
	err       error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	resp := p.responses[0]
	if len(p.responses) > 1 {
		p.responses = p.responses[1:]
	}
	return resp, nil
}

func textResponse(text string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model: "test-model",
		Choices: []llm.ChatChoice{{
			Message: llm.Message{Role: llm.RoleAssistant, Content: text},
		}},
		Usage: llm.ChatUsage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12},
	}
}

func toolCallResponse(callID, tool string, args string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model: "test-model",
		Choices: []llm.ChatChoice{{
			Message: llm.Message{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{
					{ID: callID, Name: tool, Arguments: json.RawMessage(args)},
				},
			},
		}},
	}
}

func echoRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry(nil)
	require.NoError(t, reg.Register(&tools.Tool{
		ID:          "echo",
		Name:        "echo",
		Description: "echoes its message back",
		Parameters: types.NewObjectSchema().
			AddProperty("message", types.NewStringSchema()).
			AddRequired("message"),
		Handler: func(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
			return args, nil
		},
	}))
	return reg
}

func TestAgentNode_PlainCompletion(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{textResponse("hi there")}}
	node := NewAgentNode("agent", map[string]any{
		"prompt":       "say hi",
		"systemPrompt": "be brief",
		"model":        "test-model",
	}, provider, nil, nil)

	result := node.Execute(context.Background(), nil, nil)

	require.True(t, result.Success, result.Error)
	data := result.Data.(map[string]any)
	assert.Equal(t, "hi there", data["response"])
	assert.Equal(t, "test-model", data["model"])
	usage := data["usage"].(map[string]any)
	assert.Equal(t, float64(12), usage["totalTokens"])
	assert.NotContains(t, data, "toolCalls")

	require.Len(t, provider.requests, 1)
	messages := provider.requests[0].Messages
	require.Len(t, messages, 2)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Equal(t, "be brief", messages[0].Content)
	assert.Equal(t, "say hi", messages[1].Content)
}

func TestAgentNode_ToolCallLoop(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		toolCallResponse("call-1", "echo", `{"message":"ping"}`),
		textResponse("echoed: ping"),
	}}
	node := NewAgentNode("agent", map[string]any{
		"prompt": "use the echo tool",
	}, provider, echoRegistry(t), nil)

	result := node.Execute(context.Background(), nil, nil)

	require.True(t, result.Success, result.Error)
	data := result.Data.(map[string]any)
	assert.Equal(t, "echoed: ping", data["response"])

	history := data["toolCalls"].([]types.ToolCallRecord)
	require.Len(t, history, 1)
	assert.Equal(t, "echo", history[0].ToolID)
	assert.False(t, history[0].Result.IsError())
	assert.False(t, history[0].Timestamp.IsZero())

	// The second request carried the tool schemas and the tool result.
	require.Len(t, provider.requests, 2)
	assert.Len(t, provider.requests[0].Tools, 1)
	last := provider.requests[1].Messages[len(provider.requests[1].Messages)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
}

func TestAgentNode_ToolsDisabled(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{textResponse("no tools used")}}
	node := NewAgentNode("agent", map[string]any{
		"prompt":       "just answer",
		"toolsEnabled": false,
	}, provider, echoRegistry(t), nil)

	result := node.Execute(context.Background(), nil, nil)

	require.True(t, result.Success)
	require.Len(t, provider.requests, 1)
	assert.Empty(t, provider.requests[0].Tools)
}

func TestAgentNode_Failures(t *testing.T) {
	t.Run("no provider", func(t *testing.T) {
		node := NewAgentNode("agent", map[string]any{"prompt": "x"}, nil, nil, nil)
		result := node.Execute(context.Background(), nil, nil)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "no provider configured")
	})

	t.Run("missing prompt", func(t *testing.T) {
		node := NewAgentNode("agent", nil, &scriptedProvider{}, nil, nil)
		result := node.Execute(context.Background(), nil, nil)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "prompt is required")
	})

	t.Run("provider error", func(t *testing.T) {
		provider := &scriptedProvider{err: errors.New("upstream unavailable")}
		node := NewAgentNode("agent", map[string]any{"prompt": "x"}, provider, nil, nil)
		result := node.Execute(context.Background(), nil, nil)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "upstream unavailable")
	})
}

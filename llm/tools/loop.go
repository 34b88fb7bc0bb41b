package tools

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/llm"
	"github.com/BaSui01/nodeflow/types"
)

// LoopConfig bounds the provider/tool call loop.
type LoopConfig struct {
	// MaxToolCalls caps the total number of tool invocations across the
	// whole loop. Zero means DefaultMaxToolCalls.
	MaxToolCalls int
	// StopOnError aborts the loop when any tool call in a round fails.
	StopOnError bool
}

// DefaultMaxToolCalls is the loop's tool budget when none is configured.
const DefaultMaxToolCalls = 10

// CallLoop drives the provider -> tools -> provider conversation until the
// model stops requesting tools or the budget runs out. Every executed call
// is appended to an append-only history returned with the final response.
type CallLoop struct {
	provider llm.Provider
	executor *Executor
	config   LoopConfig
	logger   *zap.Logger
}

// NewCallLoop creates a call loop.
func NewCallLoop(provider llm.Provider, executor *Executor, config LoopConfig, logger *zap.Logger) *CallLoop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxToolCalls <= 0 {
		config.MaxToolCalls = DefaultMaxToolCalls
	}
	return &CallLoop{
		provider: provider,
		executor: executor,
		config:   config,
		logger:   logger,
	}
}

// Run executes the loop. The returned history contains one record per tool
// call in execution order, regardless of success.
func (l *CallLoop) Run(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, []types.ToolCallRecord, error) {
	history := make([]types.ToolCallRecord, 0)
	messages := append([]llm.Message{}, req.Messages...)
	budget := l.config.MaxToolCalls

	for {
		callReq := *req
		callReq.Messages = messages
		resp, err := l.provider.Completion(ctx, &callReq)
		if err != nil {
			return nil, history, fmt.Errorf("provider %s: %w", l.provider.Name(), err)
		}
		if len(resp.Choices) == 0 {
			return resp, history, fmt.Errorf("provider %s returned no choices", l.provider.Name())
		}

		choice := resp.Choices[0]
		toolCalls := choice.Message.ToolCalls
		if len(toolCalls) == 0 {
			return resp, history, nil
		}

		if len(toolCalls) > budget {
			l.logger.Warn("tool budget exhausted",
				zap.Int("requested", len(toolCalls)),
				zap.Int("remaining", budget))
			toolCalls = toolCalls[:budget]
		}

		l.logger.Debug("executing requested tools", zap.Int("count", len(toolCalls)))
		toolResults := l.executor.Execute(ctx, toolCalls)

		hadError := false
		for i, result := range toolResults {
			history = append(history, types.ToolCallRecord{
				ToolID:    toolCalls[i].Name,
				Input:     toolCalls[i].Arguments,
				Result:    result,
				Timestamp: time.Now(),
			})
			if result.IsError() {
				hadError = true
				l.logger.Warn("tool call failed",
					zap.String("tool_id", result.Name),
					zap.String("error", result.Error))
			}
		}
		budget -= len(toolCalls)

		if hadError && l.config.StopOnError {
			return resp, history, fmt.Errorf("tool execution failed, stopping call loop")
		}
		if budget <= 0 {
			return resp, history, fmt.Errorf("max tool calls reached (%d)", l.config.MaxToolCalls)
		}

		messages = append(messages, choice.Message)
		for _, result := range toolResults {
			messages = append(messages, llm.ToolResultMessage(result))
		}
	}
}

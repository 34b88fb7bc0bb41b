package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/nodeflow/llm"
	"github.com/BaSui01/nodeflow/types"
)

// Observer receives tool execution outcomes, e.g. for metrics.
type Observer interface {
	ObserveToolCall(toolID string, duration time.Duration, success bool)
}

// Executor runs tool calls against a registry. Every call returns a uniform
// types.ToolResult; handler errors, panics, timeouts, and validation
// failures all surface through the result's Error field, never as a Go error.
type Executor struct {
	registry *Registry
	logger   *zap.Logger
	observer Observer

	// MaxConcurrent bounds parallel calls within one batch. Zero means
	// one goroutine per call.
	MaxConcurrent int
}

// NewExecutor creates an executor backed by the given registry.
func NewExecutor(registry *Registry, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{registry: registry, logger: logger}
}

// WithObserver attaches a metrics observer.
func (e *Executor) WithObserver(obs Observer) *Executor {
	e.observer = obs
	return e
}

// Execute runs a batch of tool calls concurrently and returns results in
// call order. The calls share no state, so fan-out is safe.
func (e *Executor) Execute(ctx context.Context, calls []llm.ToolCall) []types.ToolResult {
	results := make([]types.ToolResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	if e.MaxConcurrent > 0 {
		g.SetLimit(e.MaxConcurrent)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.ExecuteOne(gctx, call)
			return nil
		})
	}
	g.Wait()

	return results
}

// ExecuteOne validates, times, and runs a single tool call.
func (e *Executor) ExecuteOne(ctx context.Context, call llm.ToolCall) types.ToolResult {
	start := time.Now()
	result := types.ToolResult{
		ToolCallID: call.ID,
		Name:       call.Name,
	}
	finish := func() types.ToolResult {
		result.Duration = time.Since(start)
		if e.observer != nil {
			e.observer.ObserveToolCall(call.Name, result.Duration, !result.IsError())
		}
		return result
	}

	tool, err := e.registry.Get(call.Name)
	if err != nil {
		result.Error = err.Error()
		e.logger.Error("tool not found", zap.String("tool_id", call.Name))
		return finish()
	}

	if !e.registry.allow(call.Name) {
		result.Error = types.Errorf(types.ErrToolRateLimit, "tool %s rate limit exceeded", call.Name).Error()
		e.logger.Warn("tool rate limit exceeded", zap.String("tool_id", call.Name))
		return finish()
	}

	if issues := e.validateArgs(tool, call.Arguments); len(issues) > 0 {
		result.Error = types.Errorf(types.ErrToolValidation,
			"invalid arguments for %s: %s", call.Name, strings.Join(issues, "; ")).Error()
		e.logger.Error("tool argument validation failed",
			zap.String("tool_id", call.Name),
			zap.Strings("issues", issues))
		return finish()
	}

	execCtx, cancel := context.WithTimeout(ctx, tool.Timeout)
	defer cancel()

	// Buffered so the handler goroutine can exit even when the race below
	// has already been lost to the timeout.
	done := make(chan struct {
		res json.RawMessage
		err error
	}, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- struct {
					res json.RawMessage
					err error
				}{nil, fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		res, err := tool.Handler(execCtx, call.Arguments)
		done <- struct {
			res json.RawMessage
			err error
		}{res, err}
	}()

	select {
	case d := <-done:
		if d.err != nil {
			result.Error = d.err.Error()
			e.logger.Error("tool execution failed",
				zap.String("tool_id", call.Name),
				zap.Error(d.err))
		} else {
			result.Result = d.res
		}
	case <-execCtx.Done():
		result.Error = types.Errorf(types.ErrTimeout,
			"tool %s timed out after %s", call.Name, tool.Timeout).Error()
		e.logger.Error("tool execution timeout",
			zap.String("tool_id", call.Name),
			zap.Duration("timeout", tool.Timeout))
	}

	return finish()
}

// validateArgs decodes the raw arguments and checks them against the tool's
// parameter schema. Empty arguments are valid only when the schema has no
// required properties.
func (e *Executor) validateArgs(tool *Tool, args json.RawMessage) []string {
	if tool.Parameters == nil {
		return nil
	}

	var decoded any
	if len(args) == 0 {
		decoded = map[string]any{}
	} else if err := json.Unmarshal(args, &decoded); err != nil {
		return []string{fmt.Sprintf("arguments are not valid JSON: %v", err)}
	}

	return tool.Parameters.ValidateValue(decoded)
}

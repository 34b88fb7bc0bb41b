package types

import (
	"encoding/json"
	"time"
)

// ToolSchema defines a tool's interface for LLM function calling.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
	Category    string          `json:"category,omitempty"`
}

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration"`
}

// IsError returns true if the tool execution failed.
func (tr ToolResult) IsError() bool {
	return tr.Error != ""
}

// ToolCallRecord is one entry in an agent invocation's call history.
// The history is append-only; records are never rewritten after the fact.
type ToolCallRecord struct {
	ToolID    string          `json:"tool_id"`
	Input     json.RawMessage `json:"input,omitempty"`
	Result    ToolResult      `json:"result"`
	Timestamp time.Time       `json:"timestamp"`
}

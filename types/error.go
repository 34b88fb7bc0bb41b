package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Structural error codes, raised synchronously at graph-mutation time.
const (
	ErrDuplicateNode   ErrorCode = "DUPLICATE_NODE"
	ErrMissingEndpoint ErrorCode = "MISSING_ENDPOINT"
	ErrCycleDetected   ErrorCode = "CYCLE_DETECTED"
	ErrPortMismatch    ErrorCode = "PORT_MISMATCH"
	ErrNodeNotFound    ErrorCode = "NODE_NOT_FOUND"
)

// Serialization error codes.
const (
	ErrUnknownType ErrorCode = "UNKNOWN_TYPE"
	ErrValidation  ErrorCode = "VALIDATION"
)

// Run-time error codes, contained inside run results.
const (
	ErrExpression     ErrorCode = "EXPRESSION"
	ErrExecution      ErrorCode = "EXECUTION"
	ErrTimeout        ErrorCode = "TIMEOUT"
	ErrRetryExhausted ErrorCode = "RETRY_EXHAUSTED"
	ErrCancelled      ErrorCode = "CANCELLED"
	ErrWorkflow       ErrorCode = "WORKFLOW"
)

// Tool error codes.
const (
	ErrToolNotFound   ErrorCode = "TOOL_NOT_FOUND"
	ErrToolValidation ErrorCode = "TOOL_VALIDATION"
	ErrToolRateLimit  ErrorCode = "TOOL_RATE_LIMIT"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	NodeID    string    `json:"node_id,omitempty"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithNode attaches the offending node id.
func (e *Error) WithNode(nodeID string) *Error {
	e.NodeID = nodeID
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error, or "" if it is not
// a *Error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsStructural reports whether err is a graph-mutation error. Structural
// errors are the only node/connection errors allowed to escape to callers.
func IsStructural(err error) bool {
	switch GetErrorCode(err) {
	case ErrDuplicateNode, ErrMissingEndpoint, ErrCycleDetected, ErrPortMismatch, ErrNodeNotFound:
		return true
	}
	return false
}

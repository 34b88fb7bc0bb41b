package tools

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/nodeflow/types"
)

// Func is the tool callable signature. Arguments arrive as raw JSON already
// validated against the tool's parameter schema.
type Func func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Tool is a named, described, parameter-schema-carrying callable.
type Tool struct {
	ID          string
	Name        string
	Description string
	Parameters  *types.JSONSchema
	Category    string
	Handler     Func

	// Timeout bounds one execution. Zero means DefaultTimeout.
	Timeout time.Duration
	// RateLimit caps calls per second. Zero means unlimited.
	RateLimit rate.Limit
	// RateBurst is the limiter burst size; defaults to 1 when RateLimit is set.
	RateBurst int
}

// DefaultTimeout bounds tool executions that don't declare their own.
const DefaultTimeout = 30 * time.Second

// Registry is a flat, id-keyed tool registry.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*Tool
	limiters map[string]*rate.Limiter
	order    []string
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:    make(map[string]*Tool),
		limiters: make(map[string]*rate.Limiter),
		logger:   logger,
	}
}

// Register adds a tool. The id must be unique and the handler non-nil.
func (r *Registry) Register(tool *Tool) error {
	if tool == nil || tool.ID == "" {
		return types.NewError(types.ErrValidation, "tool id is required")
	}
	if tool.Handler == nil {
		return types.Errorf(types.ErrValidation, "tool %s has no handler", tool.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.ID]; exists {
		return types.Errorf(types.ErrValidation, "tool %s already registered", tool.ID)
	}

	if tool.Name == "" {
		tool.Name = tool.ID
	}
	if tool.Timeout == 0 {
		tool.Timeout = DefaultTimeout
	}

	r.tools[tool.ID] = tool
	r.order = append(r.order, tool.ID)

	if tool.RateLimit > 0 {
		burst := tool.RateBurst
		if burst <= 0 {
			burst = 1
		}
		r.limiters[tool.ID] = rate.NewLimiter(tool.RateLimit, burst)
	}

	r.logger.Info("tool registered",
		zap.String("tool_id", tool.ID),
		zap.String("category", tool.Category),
		zap.Duration("timeout", tool.Timeout))
	return nil
}

// Unregister removes a tool.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[id]; !exists {
		return types.Errorf(types.ErrToolNotFound, "tool %s not found", id)
	}
	delete(r.tools, id)
	delete(r.limiters, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a tool by id.
func (r *Registry) Get(id string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[id]
	if !ok {
		return nil, types.Errorf(types.ErrToolNotFound, "tool %s not found", id)
	}
	return tool, nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[id]
	return ok
}

// Schemas returns provider-facing descriptors for every registered tool, in
// registration order.
func (r *Registry) Schemas() []types.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]types.ToolSchema, 0, len(r.order))
	for _, id := range r.order {
		tool := r.tools[id]
		var params json.RawMessage
		if tool.Parameters != nil {
			params, _ = tool.Parameters.ToJSON()
		}
		schemas = append(schemas, types.ToolSchema{
			Name:        tool.ID,
			Description: tool.Description,
			Parameters:  params,
			Category:    tool.Category,
		})
	}
	return schemas
}

// allow consumes one rate-limit token for the tool, if it has a limiter.
func (r *Registry) allow(id string) bool {
	r.mu.RLock()
	limiter, ok := r.limiters[id]
	r.mu.RUnlock()
	if !ok {
		return true
	}
	return limiter.Allow()
}

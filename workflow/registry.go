package workflow

import (
	"sort"
	"sync"

	"github.com/BaSui01/nodeflow/types"
)

// Constructor builds a node instance from its id and raw settings.
type Constructor func(id string, settings map[string]any) (Node, error)

// Registry maps type tags to node constructors. Built-in tags are
// registered eagerly at process start (the nodes package does this in its
// init), before any deserialization attempt.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register maps a type tag to a constructor. Re-registering a tag is
// rejected.
func (r *Registry) Register(typeTag string, constructor Constructor) error {
	if typeTag == "" {
		return types.NewError(types.ErrValidation, "type tag is required")
	}
	if constructor == nil {
		return types.Errorf(types.ErrValidation, "type %s has no constructor", typeTag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[typeTag]; exists {
		return types.Errorf(types.ErrValidation, "type %s already registered", typeTag)
	}
	r.constructors[typeTag] = constructor
	return nil
}

// MustRegister is Register for process-start wiring; it panics on error.
func (r *Registry) MustRegister(typeTag string, constructor Constructor) {
	if err := r.Register(typeTag, constructor); err != nil {
		panic(err)
	}
}

// New instantiates a node by type tag.
func (r *Registry) New(typeTag, id string, settings map[string]any) (Node, error) {
	r.mu.RLock()
	constructor, ok := r.constructors[typeTag]
	r.mu.RUnlock()
	if !ok {
		return nil, types.Errorf(types.ErrUnknownType, "no constructor registered for type %q", typeTag)
	}
	return constructor(id, settings)
}

// Has reports whether a type tag is registered.
func (r *Registry) Has(typeTag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[typeTag]
	return ok
}

// Types returns the registered type tags, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.constructors))
	for tag := range r.constructors {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry built-in node types
// register into.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

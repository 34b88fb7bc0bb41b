package expression

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// exprPattern matches a delimited expression span. The inner reference must
// start with a '$' prefix; everything else passes through untouched.
var exprPattern = regexp.MustCompile(`\{\{\s*(\$[a-zA-Z_][a-zA-Z0-9_]*(?:\.[^{}\s]+)?)\s*\}\}`)

// Env carries the runtime data an expression may reference.
type Env struct {
	// Results maps upstream node id to its produced output.
	Results map[string]any
	// Input is the current node's gathered inputs.
	Input map[string]any
	// Context is the execution-context metadata bag.
	Context map[string]any
	// Settings is the node's own raw settings.
	Settings map[string]any
}

// Resolver rewrites expression spans against an Env.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a resolver. A nil logger falls back to a no-op logger.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Resolve walks a settings tree and returns a fresh value with every
// expression-bearing string rewritten. The input is never mutated; scalars
// without delimiters pass through unchanged.
func (r *Resolver) Resolve(value any, env *Env) any {
	switch v := value.(type) {
	case string:
		return r.ResolveString(v, env)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = r.Resolve(item, env)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = r.Resolve(item, env)
		}
		return out
	default:
		return v
	}
}

// ResolveSettings resolves a settings map, returning a fresh map.
func (r *Resolver) ResolveSettings(settings map[string]any, env *Env) map[string]any {
	if settings == nil {
		return nil
	}
	return r.Resolve(settings, env).(map[string]any)
}

// ResolveString rewrites every expression span in s. Strings without
// delimiters are returned as-is.
func (r *Resolver) ResolveString(s string, env *Env) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return exprPattern.ReplaceAllStringFunc(s, func(match string) string {
		ref := strings.TrimSpace(match[2 : len(match)-2])
		value, ok := r.lookup(ref, env)
		if !ok {
			r.logger.Warn("unresolvable expression left in place",
				zap.String("expression", match))
			return match
		}
		return Stringify(value)
	})
}

// lookup dispatches a reference on its prefix. The boolean is false only for
// malformed or unknown references; a valid reference to missing data
// resolves to nil (stringified as ""), matching the degrade-don't-raise
// contract.
func (r *Resolver) lookup(ref string, env *Env) (any, bool) {
	prefix, rest, _ := strings.Cut(ref, ".")
	if env == nil {
		env = &Env{}
	}

	switch prefix {
	case "$result":
		nodeID, path, _ := strings.Cut(rest, ".")
		if nodeID == "" {
			return nil, false
		}
		output, ok := env.Results[nodeID]
		if !ok {
			return nil, true
		}
		return Lookup(output, path), true
	case "$input":
		return Lookup(env.Input, rest), true
	case "$context":
		return Lookup(env.Context, rest), true
	case "$settings":
		return Lookup(env.Settings, rest), true
	default:
		return nil, false
	}
}

// Lookup walks a dot path into a decoded JSON-like value. Any missing
// intermediate returns nil. Numeric segments index into arrays.
func Lookup(value any, path string) any {
	if path == "" {
		return value
	}
	current := value
	for _, segment := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[segment]
			if !ok {
				return nil
			}
			current = next
		case map[string]string:
			next, ok := v[segment]
			if !ok {
				return nil
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil
			}
			current = v[idx]
		default:
			return nil
		}
	}
	return current
}

// Stringify converts a resolved value to its textual substitution form.
// Missing data becomes the empty string; structured values are serialized
// to JSON.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

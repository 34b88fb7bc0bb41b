package expression

// Clone deep-copies a settings tree of maps, slices, and scalars. Nodes keep
// a cloned raw copy of their settings so resolution can never write through
// to the original.
func Clone(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Clone(item)
		}
		return out
	default:
		// Scalars (and any opaque value) are copied by value.
		return v
	}
}

// CloneSettings deep-copies a settings map, preserving nil.
func CloneSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	return Clone(settings).(map[string]any)
}

package nodes

import "strconv"

// stringSetting reads a string value, falling back when absent or not a
// string.
func stringSetting(settings map[string]any, key, fallback string) string {
	if s, ok := settings[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// floatSetting reads a numeric value. JSON decoding produces float64, but
// hand-built settings may carry ints or numeric strings.
func floatSetting(settings map[string]any, key string, fallback float64) float64 {
	switch v := settings[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func intSetting(settings map[string]any, key string, fallback int) int {
	return int(floatSetting(settings, key, float64(fallback)))
}

func boolSetting(settings map[string]any, key string, fallback bool) bool {
	switch v := settings[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func mapSetting(settings map[string]any, key string) map[string]any {
	if m, ok := settings[key].(map[string]any); ok {
		return m
	}
	return nil
}

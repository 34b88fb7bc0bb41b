package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSchema_ValidateValue(t *testing.T) {
	schema := NewObjectSchema().
		AddProperty("query", NewStringSchema().WithDescription("search query")).
		AddProperty("limit", NewNumberSchema()).
		AddProperty("tags", NewArraySchema(NewStringSchema())).
		AddRequired("query")

	tests := []struct {
		name   string
		value  any
		issues int
	}{
		{"valid", map[string]any{"query": "golang", "limit": float64(5)}, 0},
		{"missing required", map[string]any{"limit": float64(5)}, 1},
		{"wrong type", map[string]any{"query": 42}, 1},
		{"bad array item", map[string]any{"query": "x", "tags": []any{"a", 1}}, 1},
		{"not an object", "just a string", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := schema.ValidateValue(tt.value)
			assert.Len(t, issues, tt.issues, "issues: %v", issues)
		})
	}
}

func TestJSONSchema_Enum(t *testing.T) {
	schema := NewStringSchema()
	schema.Enum = []any{"GET", "POST"}

	assert.Empty(t, schema.ValidateValue("GET"))
	assert.NotEmpty(t, schema.ValidateValue("DELETE"))
}

func TestJSONSchema_RoundTrip(t *testing.T) {
	schema := NewObjectSchema().
		AddProperty("city", NewStringSchema()).
		AddRequired("city")

	raw, err := schema.ToJSON()
	require.NoError(t, err)

	parsed, err := SchemaFromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, SchemaTypeObject, parsed.Type)
	assert.Contains(t, parsed.Properties, "city")
	assert.Equal(t, []string{"city"}, parsed.Required)
}

package types

import (
	"encoding/json"
	"fmt"
)

// SchemaType represents JSON Schema types.
type SchemaType string

const (
	SchemaTypeString  SchemaType = "string"
	SchemaTypeNumber  SchemaType = "number"
	SchemaTypeInteger SchemaType = "integer"
	SchemaTypeBoolean SchemaType = "boolean"
	SchemaTypeNull    SchemaType = "null"
	SchemaTypeObject  SchemaType = "object"
	SchemaTypeArray   SchemaType = "array"
)

// JSONSchema is the subset of JSON Schema used to describe tool parameters.
type JSONSchema struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Type        SchemaType `json:"type,omitempty"`

	// Object properties
	Properties map[string]*JSONSchema `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`

	// Array items
	Items *JSONSchema `json:"items,omitempty"`

	// Enum constraint
	Enum []any `json:"enum,omitempty"`

	// Default value
	Default any `json:"default,omitempty"`
}

// NewObjectSchema creates a new object schema.
func NewObjectSchema() *JSONSchema {
	return &JSONSchema{
		Type:       SchemaTypeObject,
		Properties: make(map[string]*JSONSchema),
	}
}

// NewStringSchema creates a new string schema.
func NewStringSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeString}
}

// NewNumberSchema creates a new number schema.
func NewNumberSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeNumber}
}

// NewBooleanSchema creates a new boolean schema.
func NewBooleanSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeBoolean}
}

// NewArraySchema creates a new array schema.
func NewArraySchema(items *JSONSchema) *JSONSchema {
	return &JSONSchema{Type: SchemaTypeArray, Items: items}
}

// AddProperty adds a property to an object schema.
func (s *JSONSchema) AddProperty(name string, prop *JSONSchema) *JSONSchema {
	if s.Properties == nil {
		s.Properties = make(map[string]*JSONSchema)
	}
	s.Properties[name] = prop
	return s
}

// AddRequired adds required field names.
func (s *JSONSchema) AddRequired(names ...string) *JSONSchema {
	s.Required = append(s.Required, names...)
	return s
}

// WithDescription sets the description.
func (s *JSONSchema) WithDescription(desc string) *JSONSchema {
	s.Description = desc
	return s
}

// ToJSON serializes the schema to JSON.
func (s *JSONSchema) ToJSON() (json.RawMessage, error) {
	return json.Marshal(s)
}

// SchemaFromJSON deserializes a schema from JSON.
func SchemaFromJSON(data []byte) (*JSONSchema, error) {
	var schema JSONSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON schema: %w", err)
	}
	return &schema, nil
}

// ValidateValue checks a decoded JSON value against the schema and returns
// the list of violations. An empty slice means the value conforms. The check
// covers types, required object properties, array items, and enums; it is
// the pre-flight gate tool inputs pass through before a tool runs.
func (s *JSONSchema) ValidateValue(v any) []string {
	return s.validate(v, "$")
}

func (s *JSONSchema) validate(v any, path string) []string {
	var issues []string

	if len(s.Enum) > 0 {
		found := false
		for _, allowed := range s.Enum {
			if fmt.Sprint(allowed) == fmt.Sprint(v) {
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, fmt.Sprintf("%s: value %v not in enum", path, v))
		}
	}

	switch s.Type {
	case SchemaTypeString:
		if _, ok := v.(string); !ok {
			issues = append(issues, fmt.Sprintf("%s: expected string, got %T", path, v))
		}
	case SchemaTypeNumber, SchemaTypeInteger:
		switch v.(type) {
		case float64, float32, int, int32, int64, json.Number:
		default:
			issues = append(issues, fmt.Sprintf("%s: expected %s, got %T", path, s.Type, v))
		}
	case SchemaTypeBoolean:
		if _, ok := v.(bool); !ok {
			issues = append(issues, fmt.Sprintf("%s: expected boolean, got %T", path, v))
		}
	case SchemaTypeNull:
		if v != nil {
			issues = append(issues, fmt.Sprintf("%s: expected null, got %T", path, v))
		}
	case SchemaTypeArray:
		items, ok := v.([]any)
		if !ok {
			issues = append(issues, fmt.Sprintf("%s: expected array, got %T", path, v))
			break
		}
		if s.Items != nil {
			for i, item := range items {
				issues = append(issues, s.Items.validate(item, fmt.Sprintf("%s[%d]", path, i))...)
			}
		}
	case SchemaTypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			issues = append(issues, fmt.Sprintf("%s: expected object, got %T", path, v))
			break
		}
		for _, req := range s.Required {
			if _, present := obj[req]; !present {
				issues = append(issues, fmt.Sprintf("%s: missing required property %q", path, req))
			}
		}
		for name, prop := range s.Properties {
			if val, present := obj[name]; present {
				issues = append(issues, prop.validate(val, path+"."+name)...)
			}
		}
	}

	return issues
}

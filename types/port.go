package types

// PortType is the semantic type tag carried by a node port.
type PortType string

const (
	PortTypeAny     PortType = "any"
	PortTypeString  PortType = "string"
	PortTypeNumber  PortType = "number"
	PortTypeBoolean PortType = "boolean"
	PortTypeObject  PortType = "object"
	PortTypeArray   PortType = "array"
)

// Port declares a typed input or output slot on a node.
type Port struct {
	ID       string   `json:"id"`
	Type     PortType `json:"type"`
	Required bool     `json:"required,omitempty"`
	Default  any      `json:"default,omitempty"`
	// Condition names the output branch this port belongs to, e.g. a
	// condition node's "true"/"false" outputs. Empty means unconditional.
	Condition string `json:"condition,omitempty"`
}

// Compatible reports whether a value flowing out of a port of type `from`
// may be wired into a port of type `to`. `any` is compatible with
// everything on either side.
func Compatible(from, to PortType) bool {
	if from == PortTypeAny || to == PortTypeAny || from == "" || to == "" {
		return true
	}
	return from == to
}

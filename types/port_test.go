package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortCompatible(t *testing.T) {
	tests := []struct {
		name string
		from PortType
		to   PortType
		want bool
	}{
		{"same type", PortTypeString, PortTypeString, true},
		{"different types", PortTypeString, PortTypeNumber, false},
		{"any accepts everything", PortTypeNumber, PortTypeAny, true},
		{"any feeds everything", PortTypeAny, PortTypeObject, true},
		{"untyped source", "", PortTypeString, true},
		{"untyped target", PortTypeObject, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compatible(tt.from, tt.to))
		})
	}
}

// Package types contains the shared value types used across nodeflow:
// the unified error model, the JSON Schema subset used for tool parameter
// validation, tool schemas and call records, and the typed port model.
//
// The package is a leaf: it imports nothing from the rest of the module.
package types

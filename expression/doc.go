// Package expression resolves template expressions embedded in node settings.
//
// An expression is a delimited span inside a string value, addressed by a
// prefix-dispatched reference:
//
//	{{$result.<nodeID>.<path>}}   output of a completed upstream node
//	{{$input.<path>}}             the current node's gathered inputs
//	{{$context.<path>}}           execution-context metadata
//	{{$settings.<path>}}          the node's own raw settings
//
// Resolution never raises: a missing intermediate yields an empty string and
// a malformed span is left in place and logged at warn level. Structured
// values are serialized to JSON text when substituted into a string.
package expression

// Package tools implements the tool-calling subsystem behind agent nodes:
// a flat registry of named, schema-carrying callables, an executor that
// validates inputs, enforces per-tool timeouts and rate limits, and returns
// a uniform result regardless of how the callable fails, and a bounded
// provider/tool call loop that records every invocation.
package tools

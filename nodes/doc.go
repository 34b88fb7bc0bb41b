// Package nodes provides the built-in node types: trigger, http-request,
// transform, condition and agent. All of them are registered into the
// default workflow registry at init, except the agent node, which needs a
// model provider and is registered explicitly via RegisterAgent.
package nodes

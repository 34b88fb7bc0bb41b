// Package workflow implements the automation engine core: the node
// contract, the workflow graph with structural validation and topological
// scheduling, the sequential execution engine with per-node timeout and
// retry wrappers, the type registry, and the definition serializer.
//
// A Workflow owns nodes and connections. Mutations (AddNode, AddConnection,
// RemoveNode) validate structure synchronously and reject violations
// atomically; during a run the graph is treated as read-only. The Engine
// executes nodes strictly in topological order, threading each node's
// output into the dynamic settings of its downstream consumers via the
// expression package.
package workflow

package workflow

import (
	"github.com/google/uuid"

	"github.com/BaSui01/nodeflow/types"
)

// ErrorPolicy controls how a run reacts to a failed node.
type ErrorPolicy string

const (
	// PolicyStop halts remaining execution on the first failure,
	// preserving already-completed results. This is the default.
	PolicyStop ErrorPolicy = "stop"
	// PolicyContinue keeps executing nodes that do not depend on a
	// failed node; dependents of the failure are skipped.
	PolicyContinue ErrorPolicy = "continue"
)

// Connection is a directed link from one node's output to another's input.
type Connection struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"sourceNodeId"`
	TargetNodeID string `json:"targetNodeId"`
	// SourcePort and TargetPort name the typed slots on each end; empty
	// means the node's default output/input.
	SourcePort string `json:"sourcePort,omitempty"`
	TargetPort string `json:"targetPort,omitempty"`
	// BranchIndex selects one arm of a multi-way fan-out, e.g. a
	// condition node's true (0) / false (1) outputs.
	BranchIndex *int `json:"branchIndex,omitempty"`
	// Guard is an optional expression; when it resolves falsy the
	// connection delivers nothing for that run.
	Guard string `json:"guard,omitempty"`
}

// PortedNode is implemented by node types that declare typed ports.
// AddConnection checks port compatibility when both endpoints declare them.
type PortedNode interface {
	Node
	InputPorts() []types.Port
	OutputPorts() []types.Port
}

// Workflow owns a graph of nodes and connections. It is created empty,
// mutated by add/remove operations, and treated as read-only during a run.
type Workflow struct {
	id          string
	name        string
	errorPolicy ErrorPolicy

	nodes     map[string]Node
	nodeOrder []string

	connections map[string]*Connection
	connOrder   []string
}

// New creates an empty workflow.
func New(id, name string) *Workflow {
	return &Workflow{
		id:          id,
		name:        name,
		errorPolicy: PolicyStop,
		nodes:       make(map[string]Node),
		connections: make(map[string]*Connection),
	}
}

// ID returns the workflow id.
func (w *Workflow) ID() string { return w.id }

// Name returns the workflow name.
func (w *Workflow) Name() string { return w.name }

// ErrorPolicy returns the run error policy.
func (w *Workflow) ErrorPolicy() ErrorPolicy { return w.errorPolicy }

// SetErrorPolicy sets the run error policy. An empty value resets to stop.
func (w *Workflow) SetErrorPolicy(policy ErrorPolicy) {
	if policy == "" {
		policy = PolicyStop
	}
	w.errorPolicy = policy
}

// AddNode inserts a node. Duplicate ids are rejected.
func (w *Workflow) AddNode(node Node) error {
	if node == nil || node.ID() == "" {
		return types.NewError(types.ErrValidation, "node id is required")
	}
	if _, exists := w.nodes[node.ID()]; exists {
		return types.Errorf(types.ErrDuplicateNode, "node %s already exists", node.ID()).WithNode(node.ID())
	}
	w.nodes[node.ID()] = node
	w.nodeOrder = append(w.nodeOrder, node.ID())
	return nil
}

// RemoveNode deletes a node and cascades removal of every connection
// touching it.
func (w *Workflow) RemoveNode(id string) error {
	if _, exists := w.nodes[id]; !exists {
		return types.Errorf(types.ErrNodeNotFound, "node %s not found", id).WithNode(id)
	}
	delete(w.nodes, id)
	for i, existing := range w.nodeOrder {
		if existing == id {
			w.nodeOrder = append(w.nodeOrder[:i], w.nodeOrder[i+1:]...)
			break
		}
	}

	remaining := w.connOrder[:0]
	for _, connID := range w.connOrder {
		conn := w.connections[connID]
		if conn.SourceNodeID == id || conn.TargetNodeID == id {
			delete(w.connections, connID)
			continue
		}
		remaining = append(remaining, connID)
	}
	w.connOrder = remaining
	return nil
}

// AddConnection inserts a directed edge after validating both endpoints
// exist, port types are compatible, and the edge keeps the graph acyclic.
// Rejection leaves the workflow unmodified.
func (w *Workflow) AddConnection(conn *Connection) error {
	if conn == nil {
		return types.NewError(types.ErrValidation, "connection is required")
	}
	source, ok := w.nodes[conn.SourceNodeID]
	if !ok {
		return types.Errorf(types.ErrMissingEndpoint, "source node %s not found", conn.SourceNodeID).WithNode(conn.SourceNodeID)
	}
	target, ok := w.nodes[conn.TargetNodeID]
	if !ok {
		return types.Errorf(types.ErrMissingEndpoint, "target node %s not found", conn.TargetNodeID).WithNode(conn.TargetNodeID)
	}

	if err := w.checkPortCompatibility(source, target, conn); err != nil {
		return err
	}

	if w.wouldCreateCycle(conn.SourceNodeID, conn.TargetNodeID) {
		return types.Errorf(types.ErrCycleDetected,
			"connection %s -> %s would create a cycle", conn.SourceNodeID, conn.TargetNodeID)
	}

	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	if _, exists := w.connections[conn.ID]; exists {
		return types.Errorf(types.ErrValidation, "connection %s already exists", conn.ID)
	}

	w.connections[conn.ID] = conn
	w.connOrder = append(w.connOrder, conn.ID)
	return nil
}

// RemoveConnection deletes a connection by id.
func (w *Workflow) RemoveConnection(id string) error {
	if _, exists := w.connections[id]; !exists {
		return types.Errorf(types.ErrValidation, "connection %s not found", id)
	}
	delete(w.connections, id)
	for i, existing := range w.connOrder {
		if existing == id {
			w.connOrder = append(w.connOrder[:i], w.connOrder[i+1:]...)
			break
		}
	}
	return nil
}

// Node returns a node by id.
func (w *Workflow) Node(id string) (Node, bool) {
	node, ok := w.nodes[id]
	return node, ok
}

// Nodes returns all nodes in insertion order.
func (w *Workflow) Nodes() []Node {
	nodes := make([]Node, 0, len(w.nodeOrder))
	for _, id := range w.nodeOrder {
		nodes = append(nodes, w.nodes[id])
	}
	return nodes
}

// NodeCount returns the number of nodes.
func (w *Workflow) NodeCount() int { return len(w.nodes) }

// Connections returns all connections in insertion order.
func (w *Workflow) Connections() []*Connection {
	conns := make([]*Connection, 0, len(w.connOrder))
	for _, id := range w.connOrder {
		conns = append(conns, w.connections[id])
	}
	return conns
}

// ConnectionCount returns the number of connections.
func (w *Workflow) ConnectionCount() int { return len(w.connections) }

// IncomingConnections returns the connections targeting a node, in
// insertion order.
func (w *Workflow) IncomingConnections(nodeID string) []*Connection {
	var conns []*Connection
	for _, id := range w.connOrder {
		if conn := w.connections[id]; conn.TargetNodeID == nodeID {
			conns = append(conns, conn)
		}
	}
	return conns
}

// checkPortCompatibility validates the connection's declared ports when
// both endpoints expose typed ports.
func (w *Workflow) checkPortCompatibility(source, target Node, conn *Connection) error {
	srcPorted, srcOK := source.(PortedNode)
	dstPorted, dstOK := target.(PortedNode)
	if !srcOK || !dstOK || conn.SourcePort == "" || conn.TargetPort == "" {
		return nil
	}

	var srcType, dstType types.PortType
	for _, p := range srcPorted.OutputPorts() {
		if p.ID == conn.SourcePort {
			srcType = p.Type
		}
	}
	for _, p := range dstPorted.InputPorts() {
		if p.ID == conn.TargetPort {
			dstType = p.Type
		}
	}
	if !types.Compatible(srcType, dstType) {
		return types.Errorf(types.ErrPortMismatch,
			"port %s (%s) is not compatible with port %s (%s)",
			conn.SourcePort, srcType, conn.TargetPort, dstType)
	}
	return nil
}

// wouldCreateCycle reports whether adding source -> target closes a cycle:
// true when target already reaches source through existing connections.
// Iterative DFS with an explicit stack so deep graphs cannot overflow.
func (w *Workflow) wouldCreateCycle(source, target string) bool {
	if source == target {
		return true
	}

	adjacency := w.adjacency()
	visited := make(map[string]bool, len(w.nodes))
	stack := []string{target}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == source {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		stack = append(stack, adjacency[current]...)
	}
	return false
}

// adjacency builds the source -> targets edge map, deduplicating parallel
// connections between the same pair.
func (w *Workflow) adjacency() map[string][]string {
	adj := make(map[string][]string, len(w.nodes))
	seen := make(map[[2]string]bool, len(w.connections))
	for _, id := range w.connOrder {
		conn := w.connections[id]
		pair := [2]string{conn.SourceNodeID, conn.TargetNodeID}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		adj[conn.SourceNodeID] = append(adj[conn.SourceNodeID], conn.TargetNodeID)
	}
	return adj
}

// ExecutionOrder computes a Kahn-style topological order over the nodes,
// with a stable tie-break by insertion order. Insertion-time validation
// keeps the graph acyclic, so the cycle branch here is a defensive
// re-check before every run.
func (w *Workflow) ExecutionOrder() ([]string, error) {
	adjacency := w.adjacency()

	inDegree := make(map[string]int, len(w.nodes))
	for _, id := range w.nodeOrder {
		inDegree[id] = 0
	}
	for _, targets := range adjacency {
		for _, target := range targets {
			inDegree[target]++
		}
	}

	order := make([]string, 0, len(w.nodes))
	processed := make(map[string]bool, len(w.nodes))

	for len(order) < len(w.nodeOrder) {
		// Dequeue every currently-zero-in-degree node, scanning in
		// insertion order for determinism.
		var batch []string
		for _, id := range w.nodeOrder {
			if !processed[id] && inDegree[id] == 0 {
				batch = append(batch, id)
			}
		}
		if len(batch) == 0 {
			return nil, types.Errorf(types.ErrCycleDetected,
				"workflow %s contains a cycle: %d of %d nodes unschedulable",
				w.id, len(w.nodeOrder)-len(order), len(w.nodeOrder))
		}
		for _, id := range batch {
			processed[id] = true
			order = append(order, id)
			for _, target := range adjacency[id] {
				inDegree[target]--
			}
		}
	}

	return order, nil
}

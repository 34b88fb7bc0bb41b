package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/nodeflow/types"
)

func TestAddNode_DuplicateRejected(t *testing.T) {
	wf := New("wf-1", "test")

	require.NoError(t, wf.AddNode(outputNode("a", nil)))
	err := wf.AddNode(outputNode("a", nil))

	assert.True(t, types.IsCode(err, types.ErrDuplicateNode))
	assert.Equal(t, 1, wf.NodeCount())
}

func TestAddConnection_MissingEndpoints(t *testing.T) {
	wf := New("wf-1", "test")
	require.NoError(t, wf.AddNode(outputNode("a", nil)))

	err := wf.AddConnection(&Connection{SourceNodeID: "ghost", TargetNodeID: "a"})
	assert.True(t, types.IsCode(err, types.ErrMissingEndpoint))

	err = wf.AddConnection(&Connection{SourceNodeID: "a", TargetNodeID: "ghost"})
	assert.True(t, types.IsCode(err, types.ErrMissingEndpoint))

	assert.Equal(t, 0, wf.ConnectionCount())
}

func TestAddConnection_SelfLoopRejected(t *testing.T) {
	wf := New("wf-1", "test")
	require.NoError(t, wf.AddNode(outputNode("a", nil)))

	err := wf.AddConnection(&Connection{SourceNodeID: "a", TargetNodeID: "a"})

	assert.True(t, types.IsCode(err, types.ErrCycleDetected))
	assert.Equal(t, 1, wf.NodeCount())
	assert.Equal(t, 0, wf.ConnectionCount())
}

func TestAddConnection_CycleRejectedAtomically(t *testing.T) {
	wf := New("wf-1", "test")
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, wf.AddNode(outputNode(id, nil)))
	}
	require.NoError(t, wf.AddConnection(&Connection{SourceNodeID: "a", TargetNodeID: "b"}))
	require.NoError(t, wf.AddConnection(&Connection{SourceNodeID: "b", TargetNodeID: "c"}))

	before := wf.ConnectionCount()
	err := wf.AddConnection(&Connection{SourceNodeID: "c", TargetNodeID: "a"})

	assert.True(t, types.IsCode(err, types.ErrCycleDetected))
	assert.Equal(t, before, wf.ConnectionCount())
	assert.Equal(t, 3, wf.NodeCount())
	// The accepted connections are untouched.
	order, orderErr := wf.ExecutionOrder()
	require.NoError(t, orderErr)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRemoveNode_CascadesConnections(t *testing.T) {
	wf := New("wf-1", "test")
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, wf.AddNode(outputNode(id, nil)))
	}
	require.NoError(t, wf.AddConnection(&Connection{SourceNodeID: "a", TargetNodeID: "b"}))
	require.NoError(t, wf.AddConnection(&Connection{SourceNodeID: "b", TargetNodeID: "c"}))
	require.NoError(t, wf.AddConnection(&Connection{SourceNodeID: "a", TargetNodeID: "c"}))

	require.NoError(t, wf.RemoveNode("b"))

	assert.Equal(t, 2, wf.NodeCount())
	require.Equal(t, 1, wf.ConnectionCount())
	assert.Equal(t, "a", wf.Connections()[0].SourceNodeID)
	assert.Equal(t, "c", wf.Connections()[0].TargetNodeID)

	err := wf.RemoveNode("b")
	assert.True(t, types.IsCode(err, types.ErrNodeNotFound))
}

func TestExecutionOrder_Diamond(t *testing.T) {
	// a -> b, a -> c, b -> d, c -> d. Ties break by insertion order.
	wf := New("wf-1", "test")
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, wf.AddNode(outputNode(id, nil)))
	}
	require.NoError(t, wf.AddConnection(&Connection{SourceNodeID: "a", TargetNodeID: "b"}))
	require.NoError(t, wf.AddConnection(&Connection{SourceNodeID: "a", TargetNodeID: "c"}))
	require.NoError(t, wf.AddConnection(&Connection{SourceNodeID: "b", TargetNodeID: "d"}))
	require.NoError(t, wf.AddConnection(&Connection{SourceNodeID: "c", TargetNodeID: "d"}))

	order, err := wf.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestExecutionOrder_ParallelConnectionsCountOnce(t *testing.T) {
	wf := New("wf-1", "test")
	require.NoError(t, wf.AddNode(outputNode("a", nil)))
	require.NoError(t, wf.AddNode(outputNode("b", nil)))
	zero, one := 0, 1
	require.NoError(t, wf.AddConnection(&Connection{SourceNodeID: "a", TargetNodeID: "b", BranchIndex: &zero}))
	require.NoError(t, wf.AddConnection(&Connection{SourceNodeID: "a", TargetNodeID: "b", BranchIndex: &one}))

	order, err := wf.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

type portedTestNode struct {
	funcNode
	inputs  []types.Port
	outputs []types.Port
}

func (n *portedTestNode) InputPorts() []types.Port  { return n.inputs }
func (n *portedTestNode) OutputPorts() []types.Port { return n.outputs }

func TestAddConnection_PortCompatibility(t *testing.T) {
	wf := New("wf-1", "test")
	src := &portedTestNode{
		funcNode: *outputNode("src", nil),
		outputs: []types.Port{
			{ID: "text", Type: types.PortTypeString},
			{ID: "count", Type: types.PortTypeNumber},
		},
	}
	dst := &portedTestNode{
		funcNode: *outputNode("dst", nil),
		inputs: []types.Port{
			{ID: "in", Type: types.PortTypeString},
			{ID: "anything", Type: types.PortTypeAny},
		},
	}
	require.NoError(t, wf.AddNode(src))
	require.NoError(t, wf.AddNode(dst))

	err := wf.AddConnection(&Connection{
		SourceNodeID: "src", TargetNodeID: "dst",
		SourcePort: "count", TargetPort: "in",
	})
	assert.True(t, types.IsCode(err, types.ErrPortMismatch))
	assert.Equal(t, 0, wf.ConnectionCount())

	require.NoError(t, wf.AddConnection(&Connection{
		SourceNodeID: "src", TargetNodeID: "dst",
		SourcePort: "text", TargetPort: "in",
	}))
	require.NoError(t, wf.AddConnection(&Connection{
		SourceNodeID: "src", TargetNodeID: "dst",
		SourcePort: "count", TargetPort: "anything",
	}))
}

func TestBuilder(t *testing.T) {
	wf, err := NewBuilder("wf-1", "built").
		WithErrorPolicy(PolicyContinue).
		AddNode(outputNode("a", nil)).
		AddNode(outputNode("b", nil)).
		Connect("a", "b").
		Build()

	require.NoError(t, err)
	assert.Equal(t, PolicyContinue, wf.ErrorPolicy())
	assert.Equal(t, 2, wf.NodeCount())
	assert.Equal(t, 1, wf.ConnectionCount())

	_, err = NewBuilder("wf-2", "bad").
		AddNode(outputNode("a", nil)).
		Connect("a", "ghost").
		Build()
	assert.True(t, types.IsCode(err, types.ErrMissingEndpoint))
}

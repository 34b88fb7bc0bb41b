package workflow

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/nodeflow/types"
)

func buildSampleWorkflow(t *testing.T) *Workflow {
	t.Helper()
	reg := testRegistry()

	a, err := reg.New("test-type", "a", map[string]any{"payload": map[string]any{"x": float64(1)}})
	require.NoError(t, err)
	b, err := reg.New("test-type", "b", map[string]any{"value": "{{$result.a.payload.x}}"})
	require.NoError(t, err)
	c, err := reg.New("test-type", "c", nil)
	require.NoError(t, err)

	branch := 0
	wf, err := NewBuilder("wf-1", "sample").
		WithErrorPolicy(PolicyContinue).
		AddNode(a).AddNode(b).AddNode(c).
		AddConnection(&Connection{ID: "conn-1", SourceNodeID: "a", TargetNodeID: "b"}).
		AddConnection(&Connection{ID: "conn-2", SourceNodeID: "b", TargetNodeID: "c", BranchIndex: &branch}).
		Build()
	require.NoError(t, err)
	return wf
}

func TestSerialization_RoundTrip(t *testing.T) {
	wf := buildSampleWorkflow(t)

	def := wf.ToDefinition()
	data, err := def.ToJSON()
	require.NoError(t, err)

	parsed, err := DefinitionFromJSON(data)
	require.NoError(t, err)

	restored, err := FromDefinition(parsed, testRegistry())
	require.NoError(t, err)

	assert.Equal(t, wf.ID(), restored.ID())
	assert.Equal(t, wf.Name(), restored.Name())
	assert.Equal(t, wf.ErrorPolicy(), restored.ErrorPolicy())
	assert.Equal(t, wf.NodeCount(), restored.NodeCount())
	assert.Equal(t, wf.ConnectionCount(), restored.ConnectionCount())

	// Node identity and raw settings survive verbatim.
	for i, node := range wf.Nodes() {
		restoredNode := restored.Nodes()[i]
		assert.Equal(t, node.ID(), restoredNode.ID())
		assert.Equal(t, node.Type(), restoredNode.Type())
		src := node.(rawSettingsSource)
		restoredSrc := restoredNode.(rawSettingsSource)
		assert.Equal(t, src.RawSettings(), restoredSrc.RawSettings())
	}
	// The expression stays unresolved in the persisted form.
	restoredB, _ := restored.Node("b")
	assert.Equal(t, "{{$result.a.payload.x}}", restoredB.(rawSettingsSource).RawSettings()["value"])

	for i, conn := range wf.Connections() {
		restoredConn := restored.Connections()[i]
		assert.Equal(t, conn.ID, restoredConn.ID)
		assert.Equal(t, conn.SourceNodeID, restoredConn.SourceNodeID)
		assert.Equal(t, conn.TargetNodeID, restoredConn.TargetNodeID)
		assert.Equal(t, conn.BranchIndex, restoredConn.BranchIndex)
	}
}

func TestSerialization_RawSettingsPersistAfterRun(t *testing.T) {
	wf := buildSampleWorkflow(t)

	_, err := NewEngine().Run(context.Background(), wf)
	require.NoError(t, err)

	def := wf.ToDefinition()
	var nodeB NodeDefinition
	for _, n := range def.Nodes {
		if n.Config.ID == "b" {
			nodeB = n
		}
	}
	// originalSettings keeps the expression; settings holds the resolved value.
	assert.Equal(t, "{{$result.a.payload.x}}", nodeB.OriginalSettings["value"])
	assert.Equal(t, "1", nodeB.Settings["value"])
}

func TestSerialization_JSONShape(t *testing.T) {
	wf := buildSampleWorkflow(t)
	data, err := wf.ToDefinition().ToJSON()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Contains(t, raw, "config")
	assert.Contains(t, raw, "nodes")
	assert.Contains(t, raw, "connections")
	assert.Contains(t, raw, "metadata")

	config := raw["config"].(map[string]any)
	assert.Equal(t, "wf-1", config["id"])
	assert.Equal(t, "sample", config["name"])

	nodes := raw["nodes"].([]any)
	first := nodes[0].(map[string]any)
	assert.Contains(t, first, "config")
	assert.Contains(t, first, "settings")
	assert.Contains(t, first, "originalSettings")

	meta := raw["metadata"].(map[string]any)
	assert.Equal(t, DefinitionVersion, meta["version"])
	assert.Contains(t, meta, "createdAt")
	assert.Contains(t, meta, "updatedAt")
}

func TestSerialization_YAMLRoundTrip(t *testing.T) {
	wf := buildSampleWorkflow(t)

	data, err := wf.ToDefinition().ToYAML()
	require.NoError(t, err)

	parsed, err := DefinitionFromYAML(data)
	require.NoError(t, err)

	restored, err := FromDefinition(parsed, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, wf.NodeCount(), restored.NodeCount())
	assert.Equal(t, wf.ConnectionCount(), restored.ConnectionCount())
}

func TestFromDefinition_UnknownTypeFailsFast(t *testing.T) {
	def := &Definition{
		Config: WorkflowConfig{ID: "wf-1", Name: "bad"},
		Nodes: []NodeDefinition{
			{Config: NodeConfig{ID: "a", Name: "a", Type: "test-type"}},
			{Config: NodeConfig{ID: "b", Name: "b", Type: "nonexistent-type"}},
		},
	}

	wf, err := FromDefinition(def, testRegistry())

	assert.Nil(t, wf)
	assert.True(t, types.IsCode(err, types.ErrUnknownType))
}

func TestFromDefinition_ConnectionsRevalidated(t *testing.T) {
	// A tampered payload with a cycle must be rejected on load even
	// though it was never insertable through the API.
	def := &Definition{
		Config: WorkflowConfig{ID: "wf-1", Name: "tampered"},
		Nodes: []NodeDefinition{
			{Config: NodeConfig{ID: "a", Name: "a", Type: "test-type"}},
			{Config: NodeConfig{ID: "b", Name: "b", Type: "test-type"}},
		},
		Connections: []ConnectionDefinition{
			{ID: "c1", SourceNodeID: "a", TargetNodeID: "b"},
			{ID: "c2", SourceNodeID: "b", TargetNodeID: "a"},
		},
	}

	wf, err := FromDefinition(def, testRegistry())

	assert.Nil(t, wf)
	assert.True(t, types.IsCode(err, types.ErrCycleDetected))
}

func TestValidate(t *testing.T) {
	reg := testRegistry()

	t.Run("valid definition has no issues", func(t *testing.T) {
		def := buildSampleWorkflow(t).ToDefinition()
		assert.Empty(t, Validate(def, reg))
	})

	t.Run("collects all issues without raising", func(t *testing.T) {
		branch := -1
		def := &Definition{
			Config: WorkflowConfig{ErrorPolicy: "sometimes"},
			Nodes: []NodeDefinition{
				{Config: NodeConfig{ID: "a", Type: "nonexistent-type"}},
				{Config: NodeConfig{ID: "a", Type: "test-type"}},
				{Config: NodeConfig{ID: "", Type: "test-type"}},
			},
			Connections: []ConnectionDefinition{
				{ID: "c1", SourceNodeID: "a", TargetNodeID: "ghost", BranchIndex: &branch},
			},
		}

		issues := Validate(def, reg)

		messages := make([]string, 0, len(issues))
		for _, issue := range issues {
			messages = append(messages, issue.String())
		}
		assert.Contains(t, messages, "config.id: workflow id is required")
		assert.Contains(t, messages, "config.name: workflow name is required")
		assert.Contains(t, messages, `config.errorPolicy: unknown error policy "sometimes"`)
		assert.Contains(t, messages, `nodes[0].config.type: unknown node type "nonexistent-type"`)
		assert.Contains(t, messages, `nodes[1].config.id: duplicate node id "a"`)
		assert.Contains(t, messages, "nodes[2].config.id: node id is required")
		assert.Contains(t, messages, `connections[0].targetNodeId: target node "ghost" does not exist`)
		assert.Contains(t, messages, "connections[0].branchIndex: branch index must be non-negative")
	})

	t.Run("nil definition", func(t *testing.T) {
		issues := Validate(nil, reg)
		require.Len(t, issues, 1)
	})
}

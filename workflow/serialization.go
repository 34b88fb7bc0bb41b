package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/nodeflow/expression"
	"github.com/BaSui01/nodeflow/types"
)

// DefinitionVersion is written into serialized metadata.
const DefinitionVersion = "1.0"

// Definition is the portable representation of a workflow.
type Definition struct {
	Config      WorkflowConfig         `json:"config" yaml:"config"`
	Nodes       []NodeDefinition       `json:"nodes" yaml:"nodes"`
	Connections []ConnectionDefinition `json:"connections" yaml:"connections"`
	Metadata    DefinitionMetadata     `json:"metadata" yaml:"metadata"`
}

// WorkflowConfig identifies the workflow.
type WorkflowConfig struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	ErrorPolicy ErrorPolicy `json:"errorPolicy,omitempty" yaml:"errorPolicy,omitempty"`
}

// NodeDefinition serializes one node: its identity plus deep copies of
// both the last-resolved settings and the raw, unresolved originals.
type NodeDefinition struct {
	Config           NodeConfig     `json:"config" yaml:"config"`
	Settings         map[string]any `json:"settings" yaml:"settings"`
	OriginalSettings map[string]any `json:"originalSettings" yaml:"originalSettings"`
}

// NodeConfig identifies a node.
type NodeConfig struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// ConnectionDefinition serializes one connection.
type ConnectionDefinition struct {
	ID           string `json:"id" yaml:"id"`
	SourceNodeID string `json:"sourceNodeId" yaml:"sourceNodeId"`
	TargetNodeID string `json:"targetNodeId" yaml:"targetNodeId"`
	SourcePort   string `json:"sourcePort,omitempty" yaml:"sourcePort,omitempty"`
	TargetPort   string `json:"targetPort,omitempty" yaml:"targetPort,omitempty"`
	BranchIndex  *int   `json:"branchIndex,omitempty" yaml:"branchIndex,omitempty"`
	Guard        string `json:"guard,omitempty" yaml:"guard,omitempty"`
}

// DefinitionMetadata carries versioning and timestamps.
type DefinitionMetadata struct {
	Version     string    `json:"version" yaml:"version"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// rawSettingsSource is implemented by nodes embedding BaseNode; the
// serializer uses it to persist the unresolved originals verbatim.
type rawSettingsSource interface {
	RawSettings() map[string]any
	ResolvedSettings() map[string]any
}

// ToDefinition converts the workflow to its portable form. Nodes and
// connections keep insertion order.
func (w *Workflow) ToDefinition() *Definition {
	now := time.Now().UTC()
	def := &Definition{
		Config: WorkflowConfig{
			ID:          w.id,
			Name:        w.name,
			ErrorPolicy: w.errorPolicy,
		},
		Nodes:       make([]NodeDefinition, 0, len(w.nodeOrder)),
		Connections: make([]ConnectionDefinition, 0, len(w.connOrder)),
		Metadata: DefinitionMetadata{
			Version:   DefinitionVersion,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	for _, node := range w.Nodes() {
		nodeDef := NodeDefinition{
			Config: NodeConfig{ID: node.ID(), Name: node.Name(), Type: node.Type()},
		}
		if src, ok := node.(rawSettingsSource); ok {
			nodeDef.OriginalSettings = src.RawSettings()
			nodeDef.Settings = expression.CloneSettings(src.ResolvedSettings())
		}
		if nodeDef.Settings == nil {
			nodeDef.Settings = expression.CloneSettings(nodeDef.OriginalSettings)
		}
		def.Nodes = append(def.Nodes, nodeDef)
	}

	for _, conn := range w.Connections() {
		def.Connections = append(def.Connections, ConnectionDefinition{
			ID:           conn.ID,
			SourceNodeID: conn.SourceNodeID,
			TargetNodeID: conn.TargetNodeID,
			SourcePort:   conn.SourcePort,
			TargetPort:   conn.TargetPort,
			BranchIndex:  conn.BranchIndex,
			Guard:        conn.Guard,
		})
	}

	return def
}

// FromDefinition rebuilds a workflow from its portable form. Every node's
// constructor is resolved by type tag; an unknown tag fails fast before
// any node is built, so a failed load leaves no partial workflow. Every
// connection is re-inserted through AddConnection so structural invariants
// are re-validated.
func FromDefinition(def *Definition, registry *Registry) (*Workflow, error) {
	if def == nil {
		return nil, types.NewError(types.ErrValidation, "definition is nil")
	}
	if registry == nil {
		registry = DefaultRegistry()
	}

	for _, nodeDef := range def.Nodes {
		if !registry.Has(nodeDef.Config.Type) {
			return nil, types.Errorf(types.ErrUnknownType,
				"node %s has unknown type %q", nodeDef.Config.ID, nodeDef.Config.Type)
		}
	}

	wf := New(def.Config.ID, def.Config.Name)
	wf.SetErrorPolicy(def.Config.ErrorPolicy)

	for _, nodeDef := range def.Nodes {
		// Instantiate from the original unresolved settings so loaded
		// workflows resolve freshly on their next run.
		node, err := registry.New(nodeDef.Config.Type, nodeDef.Config.ID,
			expression.CloneSettings(nodeDef.OriginalSettings))
		if err != nil {
			return nil, err
		}
		if err := wf.AddNode(node); err != nil {
			return nil, err
		}
	}

	for _, connDef := range def.Connections {
		conn := &Connection{
			ID:           connDef.ID,
			SourceNodeID: connDef.SourceNodeID,
			TargetNodeID: connDef.TargetNodeID,
			SourcePort:   connDef.SourcePort,
			TargetPort:   connDef.TargetPort,
			BranchIndex:  connDef.BranchIndex,
			Guard:        connDef.Guard,
		}
		if err := wf.AddConnection(conn); err != nil {
			return nil, err
		}
	}

	return wf, nil
}

// ValidationIssue is one problem found by Validate.
type ValidationIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Validate performs schema-level checks on a definition without
// materializing any node instance, as a pre-flight gate before attempting
// FromDefinition on untrusted input. It returns the full issue list and
// never raises.
func Validate(def *Definition, registry *Registry) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if def == nil {
		add("$", "definition is nil")
		return issues
	}
	if registry == nil {
		registry = DefaultRegistry()
	}

	if def.Config.ID == "" {
		add("config.id", "workflow id is required")
	}
	if def.Config.Name == "" {
		add("config.name", "workflow name is required")
	}
	switch def.Config.ErrorPolicy {
	case "", PolicyStop, PolicyContinue:
	default:
		add("config.errorPolicy", "unknown error policy %q", def.Config.ErrorPolicy)
	}

	nodeIDs := make(map[string]bool, len(def.Nodes))
	for i, nodeDef := range def.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)
		if nodeDef.Config.ID == "" {
			add(path+".config.id", "node id is required")
			continue
		}
		if nodeIDs[nodeDef.Config.ID] {
			add(path+".config.id", "duplicate node id %q", nodeDef.Config.ID)
		}
		nodeIDs[nodeDef.Config.ID] = true
		if nodeDef.Config.Type == "" {
			add(path+".config.type", "node type is required")
		} else if !registry.Has(nodeDef.Config.Type) {
			add(path+".config.type", "unknown node type %q", nodeDef.Config.Type)
		}
	}

	connIDs := make(map[string]bool, len(def.Connections))
	for i, connDef := range def.Connections {
		path := fmt.Sprintf("connections[%d]", i)
		if connDef.ID != "" {
			if connIDs[connDef.ID] {
				add(path+".id", "duplicate connection id %q", connDef.ID)
			}
			connIDs[connDef.ID] = true
		}
		if !nodeIDs[connDef.SourceNodeID] {
			add(path+".sourceNodeId", "source node %q does not exist", connDef.SourceNodeID)
		}
		if !nodeIDs[connDef.TargetNodeID] {
			add(path+".targetNodeId", "target node %q does not exist", connDef.TargetNodeID)
		}
		if connDef.BranchIndex != nil && *connDef.BranchIndex < 0 {
			add(path+".branchIndex", "branch index must be non-negative")
		}
	}

	return issues
}

// ToJSON serializes the definition to indented JSON.
func (d *Definition) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal definition to JSON: %w", err)
	}
	return data, nil
}

// ToYAML serializes the definition to YAML.
func (d *Definition) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal definition to YAML: %w", err)
	}
	return data, nil
}

// DefinitionFromJSON parses a definition from JSON.
func DefinitionFromJSON(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, types.NewError(types.ErrValidation, "definition is not valid JSON").WithCause(err)
	}
	return &def, nil
}

// DefinitionFromYAML parses a definition from YAML.
func DefinitionFromYAML(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, types.NewError(types.ErrValidation, "definition is not valid YAML").WithCause(err)
	}
	return &def, nil
}

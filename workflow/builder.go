package workflow

// Builder assembles a workflow fluently, deferring structural errors to
// Build so call chains stay flat.
type Builder struct {
	wf   *Workflow
	errs []error
}

// NewBuilder starts a workflow.
func NewBuilder(id, name string) *Builder {
	return &Builder{wf: New(id, name)}
}

// WithErrorPolicy sets the run error policy.
func (b *Builder) WithErrorPolicy(policy ErrorPolicy) *Builder {
	b.wf.SetErrorPolicy(policy)
	return b
}

// AddNode inserts a node.
func (b *Builder) AddNode(node Node) *Builder {
	if err := b.wf.AddNode(node); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Connect links source to target with a default connection.
func (b *Builder) Connect(sourceID, targetID string) *Builder {
	return b.AddConnection(&Connection{SourceNodeID: sourceID, TargetNodeID: targetID})
}

// ConnectBranch links source to target on a specific fan-out branch.
func (b *Builder) ConnectBranch(sourceID, targetID string, branch int) *Builder {
	return b.AddConnection(&Connection{
		SourceNodeID: sourceID,
		TargetNodeID: targetID,
		BranchIndex:  &branch,
	})
}

// AddConnection inserts a fully specified connection.
func (b *Builder) AddConnection(conn *Connection) *Builder {
	if err := b.wf.AddConnection(conn); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Build returns the workflow, or the first structural error hit while
// assembling it.
func (b *Builder) Build() (*Workflow, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	return b.wf, nil
}

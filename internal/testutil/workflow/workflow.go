package workflow

import (
	"time"

	"github.com/eleven-am/weft/internal/domain"
)

// Builder assembles workflows for tests.
type Builder struct {
	wf *domain.Workflow
}

func New(id string) *Builder {
	now := time.Now().UTC()
	return &Builder{wf: &domain.Workflow{
		ID:          id,
		UserID:      "user-1",
		Name:        "workflow " + id,
		Nodes:       []domain.Node{},
		Connections: []domain.NodeConnection{},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}}
}

func (b *Builder) User(userID string) *Builder {
	b.wf.UserID = userID
	return b
}

// Node adds a node of the scripted type driven by behaviour.
func (b *Builder) Node(id string, behaviour Behaviour) *Builder {
	b.wf.Nodes = append(b.wf.Nodes, domain.Node{
		ID:     id,
		Name:   id,
		Type:   ScriptedNodeType,
		Config: behaviour.config(),
	})
	return b
}

func (b *Builder) TypedNode(id, nodeType string, config map[string]interface{}) *Builder {
	b.wf.Nodes = append(b.wf.Nodes, domain.Node{ID: id, Name: id, Type: nodeType, Config: config})
	return b
}

func (b *Builder) Connect(source, target string) *Builder {
	b.wf.Connections = append(b.wf.Connections, domain.NodeConnection{
		SourceNodeID: source,
		TargetNodeID: target,
	})
	return b
}

func (b *Builder) Build() *domain.Workflow {
	return b.wf.Clone()
}

// Chain returns a linear workflow of scripted nodes that echo their input.
func Chain(id string, nodeIDs ...string) *domain.Workflow {
	b := New(id)
	for i, nodeID := range nodeIDs {
		b.Node(nodeID, Echo())
		if i > 0 {
			b.Connect(nodeIDs[i-1], nodeID)
		}
	}
	return b.Build()
}

// Definition strips a workflow down to what a caller submits on create.
func Definition(wf *domain.Workflow) domain.WorkflowDefinition {
	return domain.WorkflowDefinition{
		Name:        wf.Name,
		Description: wf.Description,
		Nodes:       domain.CloneNodes(wf.Nodes),
		Connections: append([]domain.NodeConnection(nil), wf.Connections...),
		Tags:        append([]string(nil), wf.Tags...),
	}
}

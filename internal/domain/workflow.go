package domain

import (
	"time"
)

type Workflow struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Nodes       []Node            `json:"nodes"`
	Connections []NodeConnection  `json:"connections"`
	Version     int64             `json:"version"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Schedule    *WorkflowSchedule `json:"schedule,omitempty"`
	Published   bool              `json:"published"`
	Tags        []string          `json:"tags"`
}

// Node is a vertex of a workflow graph. Type selects the runtime
// implementation from the node registry; Config is handed to its factory.
type Node struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config,omitempty"`
}

type NodeConnection struct {
	SourceNodeID string `json:"sourceNodeId"`
	TargetNodeID string `json:"targetNodeId"`
}

// WorkflowDefinition is the caller supplied part of a workflow on creation.
type WorkflowDefinition struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Nodes       []Node           `json:"nodes"`
	Connections []NodeConnection `json:"connections"`
	Tags        []string         `json:"tags"`
}

// WorkflowPatch carries optional fields. Only non-nil fields are applied.
type WorkflowPatch struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Nodes       *[]Node           `json:"nodes,omitempty"`
	Connections *[]NodeConnection `json:"connections,omitempty"`
	Tags        *[]string         `json:"tags,omitempty"`
	Schedule    *WorkflowSchedule `json:"schedule,omitempty"`
	Published   *bool             `json:"published,omitempty"`
}

const DefaultWorkflowName = "Untitled Workflow"

type WorkflowFilter struct {
	UserID string
}

// NodeByID returns the node with the given id.
func (w *Workflow) NodeByID(id string) (Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, true
		}
	}
	return Node{}, false
}

// Clone returns a deep copy so callers can mutate the result freely.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	clone := *w
	clone.Nodes = CloneNodes(w.Nodes)
	if w.Connections != nil {
		clone.Connections = make([]NodeConnection, len(w.Connections))
		copy(clone.Connections, w.Connections)
	}
	if w.Tags != nil {
		clone.Tags = make([]string, len(w.Tags))
		copy(clone.Tags, w.Tags)
	}
	if w.Schedule != nil {
		schedule := w.Schedule.Clone()
		clone.Schedule = &schedule
	}
	return &clone
}

func CloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}

	cloned := make([]Node, len(nodes))
	for i, node := range nodes {
		cloned[i] = node
		cloned[i].Config = CloneMap(node.Config)
	}
	return cloned
}

// CloneMap copies nested maps and slices produced by JSON decoding.
func CloneMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}

	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case map[string]interface{}:
		return CloneMap(typed)
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

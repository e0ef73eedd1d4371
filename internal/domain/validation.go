package domain

import (
	"strings"
)

// ValidateGraph checks that node ids are non-empty and unique, every node
// has a type, and connections only reference known nodes. Cycles are not a
// validation error: they are reported when the workflow runs.
func ValidateGraph(nodes []Node, connections []NodeConnection) error {
	seen := make(map[string]struct{}, len(nodes))
	for i, node := range nodes {
		if strings.TrimSpace(node.ID) == "" {
			return NewValidationError("nodes", "node at index %d has an empty id", i)
		}
		if _, dup := seen[node.ID]; dup {
			return NewValidationError("nodes", "duplicate node id %q", node.ID)
		}
		if strings.TrimSpace(node.Type) == "" {
			return NewValidationError("nodes", "node %q has no type", node.ID)
		}
		seen[node.ID] = struct{}{}
	}

	for i, conn := range connections {
		if _, ok := seen[conn.SourceNodeID]; !ok {
			return NewValidationError("connections", "connection %d references unknown source node %q", i, conn.SourceNodeID)
		}
		if _, ok := seen[conn.TargetNodeID]; !ok {
			return NewValidationError("connections", "connection %d references unknown target node %q", i, conn.TargetNodeID)
		}
	}

	return nil
}

// Validate checks the structural invariants of a stored workflow.
func (w *Workflow) Validate() error {
	if w == nil {
		return NewValidationError("", "workflow is nil")
	}
	if err := ValidateGraph(w.Nodes, w.Connections); err != nil {
		return err
	}
	if w.Schedule != nil {
		if err := w.Schedule.Validate(); err != nil {
			return err
		}
	}
	return nil
}

package engine

import (
	"time"

	"github.com/eleven-am/weft/internal/domain"
)

// QueuedNode is the per-execution bookkeeping for one workflow node. It is
// only mutated by the scheduler loop goroutine.
type QueuedNode struct {
	Node         domain.Node
	Inputs       map[string]interface{}
	Dependencies []string
	Dependents   []string
	Executed     bool
	Result       *NodeResult
}

// NodeResult is what one dispatch of a node produced.
type NodeResult struct {
	NodeID      string
	Output      *domain.NodeOutput
	Err         error
	StartedAt   time.Time
	CompletedAt time.Time
}

func (r *NodeResult) Succeeded() bool {
	return r.Err == nil && r.Output != nil && r.Output.Success
}

func (r *NodeResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// ExecutionQueue keeps the queued nodes together with the workflow's node
// order so ready sets are built deterministically.
type ExecutionQueue struct {
	Nodes map[string]*QueuedNode
	Order []string
}

// buildExecutionQueue materializes the dependency graph of a workflow.
// Connections naming unknown nodes are skipped; validation rejects them
// before a workflow is stored. Root nodes receive a copy of initialInput.
func buildExecutionQueue(workflow *domain.Workflow, initialInput map[string]interface{}) *ExecutionQueue {
	queue := &ExecutionQueue{
		Nodes: make(map[string]*QueuedNode, len(workflow.Nodes)),
		Order: make([]string, 0, len(workflow.Nodes)),
	}

	for _, node := range workflow.Nodes {
		if _, dup := queue.Nodes[node.ID]; dup {
			continue
		}
		queue.Nodes[node.ID] = &QueuedNode{
			Node:   node,
			Inputs: make(map[string]interface{}),
		}
		queue.Order = append(queue.Order, node.ID)
	}

	for _, conn := range workflow.Connections {
		source, ok := queue.Nodes[conn.SourceNodeID]
		if !ok {
			continue
		}
		target, ok := queue.Nodes[conn.TargetNodeID]
		if !ok {
			continue
		}
		source.Dependents = append(source.Dependents, conn.TargetNodeID)
		target.Dependencies = append(target.Dependencies, conn.SourceNodeID)
	}

	for _, id := range queue.Order {
		qn := queue.Nodes[id]
		if len(qn.Dependencies) == 0 {
			qn.Inputs = domain.CloneMap(initialInput)
			if qn.Inputs == nil {
				qn.Inputs = make(map[string]interface{})
			}
		}
	}

	return queue
}

// readySet returns the unexecuted nodes whose dependencies have all executed.
func (q *ExecutionQueue) readySet() []*QueuedNode {
	var ready []*QueuedNode
	for _, id := range q.Order {
		qn := q.Nodes[id]
		if qn.Executed {
			continue
		}
		if q.dependenciesExecuted(qn) {
			ready = append(ready, qn)
		}
	}
	return ready
}

func (q *ExecutionQueue) dependenciesExecuted(qn *QueuedNode) bool {
	for _, dep := range qn.Dependencies {
		if parent, ok := q.Nodes[dep]; !ok || !parent.Executed {
			return false
		}
	}
	return true
}

func (q *ExecutionQueue) allExecuted() bool {
	for _, qn := range q.Nodes {
		if !qn.Executed {
			return false
		}
	}
	return true
}

// pending lists the ids that never became ready, in workflow order.
func (q *ExecutionQueue) pending() []string {
	var ids []string
	for _, id := range q.Order {
		if !q.Nodes[id].Executed {
			ids = append(ids, id)
		}
	}
	return ids
}

func (q *ExecutionQueue) rootNodes() []string {
	var ids []string
	for _, id := range q.Order {
		if len(q.Nodes[id].Dependencies) == 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

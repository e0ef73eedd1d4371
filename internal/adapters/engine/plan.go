package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/heimdalr/dag"
)

// Planner previews the batches a workflow would run in without executing
// anything. Each level holds the nodes whose deepest dependency chain has
// the same length, which is exactly what the scheduler dispatches together.
type Planner struct {
	logger *slog.Logger
}

func NewPlanner(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{logger: logger.With("component", "planner")}
}

func (p *Planner) Plan(workflow *domain.Workflow) ([][]string, error) {
	if workflow == nil {
		return nil, domain.ErrInvalidInput
	}

	graph, order, err := p.buildDAG(workflow)
	if err != nil {
		return nil, err
	}

	depth := make(map[string]int, len(order))
	var levelOf func(id string) (int, error)
	levelOf = func(id string) (int, error) {
		if d, ok := depth[id]; ok {
			return d, nil
		}
		parents, err := graph.GetParents(id)
		if err != nil {
			return 0, fmt.Errorf("failed to get parents of %s: %w", id, err)
		}
		level := 0
		for parentID := range parents {
			parentLevel, err := levelOf(parentID)
			if err != nil {
				return 0, err
			}
			if parentLevel+1 > level {
				level = parentLevel + 1
			}
		}
		depth[id] = level
		return level, nil
	}

	var levels [][]string
	for _, id := range order {
		level, err := levelOf(id)
		if err != nil {
			return nil, err
		}
		for len(levels) <= level {
			levels = append(levels, nil)
		}
		levels[level] = append(levels[level], id)
	}

	p.logger.Debug("workflow plan computed",
		"workflow_id", workflow.ID,
		"nodes", len(order),
		"levels", len(levels))

	return levels, nil
}

// buildDAG adds every node as a vertex and every connection as an edge.
// Vertices are keyed by node id; the id string doubles as the vertex value.
func (p *Planner) buildDAG(workflow *domain.Workflow) (*dag.DAG, []string, error) {
	graph := dag.NewDAG()
	order := make([]string, 0, len(workflow.Nodes))

	for _, node := range workflow.Nodes {
		if err := graph.AddVertexByID(node.ID, node.ID); err != nil {
			var (
				dupID    dag.IDDuplicateError
				dupValue dag.VertexDuplicateError
			)
			if errors.As(err, &dupID) || errors.As(err, &dupValue) {
				continue
			}
			return nil, nil, fmt.Errorf("failed to add node %s: %w", node.ID, err)
		}
		order = append(order, node.ID)
	}

	for _, conn := range workflow.Connections {
		err := graph.AddEdge(conn.SourceNodeID, conn.TargetNodeID)
		if err == nil {
			continue
		}

		var (
			loop      dag.EdgeLoopError
			self      dag.SrcDstEqualError
			duplicate dag.EdgeDuplicateError
			unknown   dag.IDUnknownError
		)
		switch {
		case errors.As(err, &loop), errors.As(err, &self):
			p.logger.Debug("connection closes a cycle",
				"workflow_id", workflow.ID,
				"source_node_id", conn.SourceNodeID,
				"target_node_id", conn.TargetNodeID)
			return nil, nil, fmt.Errorf("%w: connection %s -> %s closes a cycle",
				domain.ErrCircularDependency, conn.SourceNodeID, conn.TargetNodeID)
		case errors.As(err, &duplicate), errors.As(err, &unknown):
			continue
		default:
			return nil, nil, fmt.Errorf("failed to add connection %s -> %s: %w", conn.SourceNodeID, conn.TargetNodeID, err)
		}
	}

	return graph, order, nil
}

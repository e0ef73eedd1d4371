package ports

import (
	"context"

	"github.com/eleven-am/weft/internal/domain"
)

// NodePort is the executable form of a workflow node. Implementations should
// honour ctx cancellation; the engine never kills a running node.
type NodePort interface {
	Execute(ctx context.Context, input domain.NodeInput) (*domain.NodeOutput, error)
}

// NodeFunc adapts a plain function to NodePort.
type NodeFunc func(ctx context.Context, input domain.NodeInput) (*domain.NodeOutput, error)

func (f NodeFunc) Execute(ctx context.Context, input domain.NodeInput) (*domain.NodeOutput, error) {
	return f(ctx, input)
}

// NodeFactory builds a runtime node from its definition. It is called once
// per node per execution.
type NodeFactory func(node domain.Node) (NodePort, error)

type NodeRegistryPort interface {
	RegisterNodeType(nodeType string, factory NodeFactory) error
	UnregisterNodeType(nodeType string) error
	CreateNode(node domain.Node) (NodePort, error)
	HasNodeType(nodeType string) bool
	ListNodeTypes() []string
	GetNodeTypeCount() int
}

type NodeRegistrationError struct {
	NodeType string
	Reason   string
}

func (e NodeRegistrationError) Error() string {
	return "node registration failed for '" + e.NodeType + "': " + e.Reason
}

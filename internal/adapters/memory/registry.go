package memory

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
)

// NodeTypeRegistry maps node type names to factories. A fresh node is built
// for every dispatch so nodes may keep per-run state.
type NodeTypeRegistry struct {
	factories map[string]ports.NodeFactory
	mu        sync.RWMutex
	logger    *slog.Logger
}

var _ ports.NodeRegistryPort = (*NodeTypeRegistry)(nil)

func NewNodeTypeRegistry(logger *slog.Logger) *NodeTypeRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	return &NodeTypeRegistry{
		factories: make(map[string]ports.NodeFactory),
		logger:    logger.With("component", "registry", "type", "memory"),
	}
}

func (r *NodeTypeRegistry) RegisterNodeType(nodeType string, factory ports.NodeFactory) error {
	if err := validateRegistration(nodeType, factory); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[nodeType]; exists {
		r.logger.Warn("node type registration conflict detected", "node_type", nodeType)
		return &ports.NodeRegistrationError{
			NodeType: nodeType,
			Reason:   "node type already registered",
		}
	}

	r.factories[nodeType] = factory
	r.logger.Info("node type registered", "node_type", nodeType)
	return nil
}

func (r *NodeTypeRegistry) UnregisterNodeType(nodeType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[nodeType]; !exists {
		r.logger.Warn("attempt to unregister unknown node type", "node_type", nodeType)
		return fmt.Errorf("node type %q: %w", nodeType, domain.ErrNotFound)
	}

	delete(r.factories, nodeType)
	r.logger.Info("node type unregistered", "node_type", nodeType)
	return nil
}

// CreateNode builds the runtime node for a definition. Unknown types yield an
// error wrapping domain.ErrUnknownNodeType.
func (r *NodeTypeRegistry) CreateNode(node domain.Node) (ports.NodePort, error) {
	r.mu.RLock()
	factory, exists := r.factories[node.Type]
	r.mu.RUnlock()

	if !exists {
		r.logger.Debug("node type not found", "node_type", node.Type, "node_id", node.ID)
		return nil, fmt.Errorf("node %s: %w %q", node.ID, domain.ErrUnknownNodeType, node.Type)
	}

	instance, err := factory(node)
	if err != nil {
		return nil, fmt.Errorf("create node %s of type %s: %w", node.ID, node.Type, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("create node %s of type %s: factory returned nil", node.ID, node.Type)
	}
	return instance, nil
}

func (r *NodeTypeRegistry) HasNodeType(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[nodeType]
	return exists
}

func (r *NodeTypeRegistry) ListNodeTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for nodeType := range r.factories {
		types = append(types, nodeType)
	}
	sort.Strings(types)
	return types
}

func (r *NodeTypeRegistry) GetNodeTypeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.factories)
}

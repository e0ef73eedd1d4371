package memory

import (
	"strings"

	"github.com/eleven-am/weft/internal/ports"
)

func validateRegistration(nodeType string, factory ports.NodeFactory) error {
	if strings.TrimSpace(nodeType) == "" {
		return &ports.NodeRegistrationError{
			NodeType: nodeType,
			Reason:   "node type cannot be empty",
		}
	}

	if factory == nil {
		return &ports.NodeRegistrationError{
			NodeType: nodeType,
			Reason:   "factory cannot be nil",
		}
	}

	return nil
}

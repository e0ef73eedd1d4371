package weft

import (
	"context"
	"fmt"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/xjson"
)

// TypedNode builds a factory whose nodes receive their definition's config
// decoded into C. A config that does not decode fails the node's creation,
// which the engine records as a failure of that node.
//
//	type fetchConfig struct {
//	    URL string `json:"url"`
//	}
//
//	manager.RegisterNodeType("fetch", weft.TypedNode(func(ctx context.Context, cfg fetchConfig, in weft.NodeInput) (*weft.NodeOutput, error) {
//	    ...
//	}))
func TypedNode[C any](fn func(ctx context.Context, config C, input NodeInput) (*NodeOutput, error)) NodeFactory {
	return func(node domain.Node) (NodePort, error) {
		config, err := DecodeConfig[C](node)
		if err != nil {
			return nil, err
		}
		return NodeFunc(func(ctx context.Context, input NodeInput) (*NodeOutput, error) {
			return fn(ctx, config, input)
		}), nil
	}
}

// DecodeConfig converts a node's config map into T.
func DecodeConfig[T any](node Node) (T, error) {
	var config T
	if len(node.Config) == 0 {
		return config, nil
	}

	raw, err := xjson.Marshal(node.Config)
	if err != nil {
		return config, fmt.Errorf("failed to marshal config of node %s: %w", node.ID, err)
	}
	if err := xjson.Unmarshal(raw, &config); err != nil {
		return config, domain.NewValidationError("config", "node %s: %v", node.ID, err)
	}
	return config, nil
}

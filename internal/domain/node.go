package domain

// NodeInput is what a node receives when dispatched. Data holds the outputs
// of its dependencies keyed by node id, plus the custom input for root nodes.
type NodeInput struct {
	UserID      string                 `json:"userId"`
	WorkflowID  string                 `json:"workflowId"`
	ExecutionID string                 `json:"executionId"`
	NodeID      string                 `json:"nodeId"`
	Config      map[string]interface{} `json:"config,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Flatten returns the map form handed to nodes that take a plain bag of
// values: the run identifiers merged with the accumulated inputs.
func (in NodeInput) Flatten() map[string]interface{} {
	flat := make(map[string]interface{}, len(in.Data)+3)
	flat["userId"] = in.UserID
	flat["workflowId"] = in.WorkflowID
	flat["executionId"] = in.ExecutionID
	for k, v := range in.Data {
		flat[k] = v
	}
	return flat
}

type NodeOutput struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
}

func Succeeded(data interface{}) *NodeOutput {
	return &NodeOutput{Success: true, Data: data}
}

func Failed(message string) *NodeOutput {
	return &NodeOutput{Success: false, Error: message}
}

// NodeTypeInfo describes a registered node type.
type NodeTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

package domain

import (
	"errors"
	"fmt"
	"time"
)

type ExecutionStatus string

const (
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
	ExecutionTimeout ExecutionStatus = "timeout"
)

// IsTerminal reports whether no further transition is allowed.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionSuccess || s == ExecutionFailed || s == ExecutionTimeout
}

type NodeStatus string

const (
	NodeSuccess NodeStatus = "success"
	NodeFailed  NodeStatus = "failed"
)

const (
	AbortedMessage  = "Execution manually aborted"
	TimeoutMessage  = "Workflow execution aborted due to timeout"
	CircularMessage = "Circular dependency detected in workflow"
)

type WorkflowExecution struct {
	ID         string                 `json:"id"`
	WorkflowID string                 `json:"workflowId"`
	UserID     string                 `json:"userId"`
	StartTime  time.Time              `json:"startTime"`
	EndTime    *time.Time             `json:"endTime,omitempty"`
	Status     ExecutionStatus        `json:"status"`
	Logs       []string               `json:"logs,omitempty"`
	Metrics    ExecutionRunMetrics    `json:"metrics"`
	Results    map[string]interface{} `json:"results"`
	Error      string                 `json:"error,omitempty"`
}

type ExecutionRunMetrics struct {
	TotalDuration  time.Duration   `json:"totalDuration"`
	NodeExecutions []NodeExecution `json:"nodeExecutions"`
}

type NodeExecution struct {
	NodeID      string        `json:"nodeId"`
	Duration    time.Duration `json:"duration"`
	Status      NodeStatus    `json:"status"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt time.Time     `json:"completedAt"`
	Error       string        `json:"error,omitempty"`
}

type ExecutionFilter struct {
	WorkflowID string
	Limit      int
	Offset     int
}

type ExecutionPage struct {
	Executions []*WorkflowExecution `json:"executions"`
	Total      int                  `json:"total"`
}

const (
	DefaultExecutionPageLimit = 10
)

// Clone returns a copy whose slices and maps are not shared.
func (e *WorkflowExecution) Clone() *WorkflowExecution {
	if e == nil {
		return nil
	}

	clone := *e
	if e.EndTime != nil {
		end := *e.EndTime
		clone.EndTime = &end
	}
	clone.Logs = append([]string(nil), e.Logs...)
	clone.Metrics.NodeExecutions = append([]NodeExecution(nil), e.Metrics.NodeExecutions...)
	clone.Results = CloneMap(e.Results)
	return &clone
}

// ExecutionErrorMessage converts a run error into the message stored on the
// execution record.
func ExecutionErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExecutionAborted):
		return AbortedMessage
	case errors.Is(err, ErrExecutionTimeout):
		return TimeoutMessage
	case errors.Is(err, ErrCircularDependency):
		return CircularMessage
	}

	var failed *NodeFailedError
	if errors.As(err, &failed) {
		return fmt.Sprintf("Node %s failed: %s", failed.NodeID, failed.Message)
	}
	return err.Error()
}

// StatusForError picks the terminal status a run error maps to.
func StatusForError(err error) ExecutionStatus {
	switch {
	case err == nil:
		return ExecutionSuccess
	case IsCancellation(err):
		return ExecutionTimeout
	default:
		return ExecutionFailed
	}
}

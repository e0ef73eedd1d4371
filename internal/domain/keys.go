package domain

import (
	"fmt"
	"math"
	"time"
)

const (
	WorkflowDefPrefix       = "workflow:def:"
	WorkflowUserPrefix      = "workflow:user:"
	ExecutionRecordPrefix   = "execution:record:"
	ExecutionWorkflowPrefix = "execution:workflow:"
)

// WorkflowKey builds the canonical key for a workflow definition
func WorkflowKey(id string) string {
	return fmt.Sprintf("%s%s", WorkflowDefPrefix, id)
}

// WorkflowUserIndexPrefix is the prefix under which a user's workflows are
// indexed. The id is length prefixed so no user's prefix covers another's.
func WorkflowUserIndexPrefix(userID string) string {
	return fmt.Sprintf("%s%d:%s:", WorkflowUserPrefix, len(userID), userID)
}

func WorkflowUserIndexKey(userID, workflowID string) string {
	return WorkflowUserIndexPrefix(userID) + workflowID
}

func ExecutionKey(id string) string {
	return fmt.Sprintf("%s%s", ExecutionRecordPrefix, id)
}

func ExecutionWorkflowIndexPrefix(workflowID string) string {
	return fmt.Sprintf("%s%s:", ExecutionWorkflowPrefix, workflowID)
}

// ExecutionWorkflowIndexKey orders executions newest first under a forward
// prefix scan by inverting the start time.
func ExecutionWorkflowIndexKey(workflowID string, startTime time.Time, executionID string) string {
	inverted := math.MaxInt64 - startTime.UnixNano()
	return fmt.Sprintf("%s%019d:%s", ExecutionWorkflowIndexPrefix(workflowID), inverted, executionID)
}

package ports

import (
	"context"

	"github.com/eleven-am/weft/internal/domain"
)

type EnginePort interface {
	Start(ctx context.Context) error
	Stop() error

	// Execute persists a running record, starts the run in the background
	// and returns the record without waiting.
	Execute(ctx context.Context, workflow *domain.Workflow, userID string, options domain.ExecutionOptions) (*domain.WorkflowExecution, error)
	Abort(ctx context.Context, executionID string) (bool, error)
	Wait(ctx context.Context, executionID string) (*domain.WorkflowExecution, error)
	Plan(workflow *domain.Workflow) ([][]string, error)
	IsRunning(executionID string) bool
	GetMetrics() domain.ExecutionMetrics
}

type EventsPort interface {
	OnExecutionStarted(handler func(*domain.ExecutionStartedEvent)) (unsubscribe func())
	OnExecutionCompleted(handler func(*domain.ExecutionCompletedEvent)) (unsubscribe func())
	OnNodeCompleted(handler func(*domain.NodeCompletedEvent)) (unsubscribe func())

	PublishExecutionStarted(event *domain.ExecutionStartedEvent)
	PublishExecutionCompleted(event *domain.ExecutionCompletedEvent)
	PublishNodeCompleted(event *domain.NodeCompletedEvent)
}

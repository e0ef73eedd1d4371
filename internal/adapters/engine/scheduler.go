package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eleven-am/weft/internal/adapters/tracing"
	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
	"golang.org/x/sync/errgroup"
)

// runState is everything the scheduler loop needs for one execution.
type runState struct {
	executionID string
	workflowID  string
	userID      string
	workflow    *domain.Workflow
	queue       *ExecutionQueue
	recorder    *Recorder
	handle      *runHandle
	options     domain.ExecutionOptions
}

// Scheduler drives an execution queue level by level: every node whose
// dependencies have executed is dispatched together, the whole batch is
// awaited, and only then are results folded back into the queue by the
// calling goroutine.
type Scheduler struct {
	registry           ports.NodeRegistryPort
	recovery           *RecoverableExecutor
	events             ports.EventsPort
	tracing            *tracing.TracingProvider
	metrics            *domain.ExecutionMetrics
	maxConcurrentNodes int
	logger             *slog.Logger
}

func NewScheduler(
	registry ports.NodeRegistryPort,
	events ports.EventsPort,
	tracer *tracing.TracingProvider,
	metrics *domain.ExecutionMetrics,
	maxConcurrentNodes int,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = domain.NewExecutionMetrics()
	}
	if tracer == nil {
		tracer = tracing.NewTracingProvider(domain.DefaultTracingConfig(), logger)
	}

	return &Scheduler{
		registry:           registry,
		recovery:           NewRecoverableExecutor(logger, metrics),
		events:             events,
		tracing:            tracer,
		metrics:            metrics,
		maxConcurrentNodes: maxConcurrentNodes,
		logger:             logger.With("component", "scheduler"),
	}
}

// Run executes the queue to completion. It returns the data of every
// successful node keyed by node id, or the error that ended the run.
// ctx must derive from run.handle so node contexts observe cancellation.
func (s *Scheduler) Run(ctx context.Context, run *runState) (map[string]interface{}, error) {
	results := make(map[string]interface{})
	tick := 0

	for {
		if err := run.handle.Err(); err != nil {
			run.recorder.Log("Execution cancelled: %s", domain.ExecutionErrorMessage(err))
			s.logger.Info("execution cancelled",
				"execution_id", run.executionID,
				"workflow_id", run.workflowID,
				"reason", err)
			return nil, err
		}

		ready := run.queue.readySet()
		if len(ready) == 0 {
			if run.queue.allExecuted() {
				return results, nil
			}

			pending := run.queue.pending()
			run.recorder.Log("No runnable nodes left, waiting on: %s", strings.Join(pending, ", "))
			s.logger.Warn("circular dependency detected",
				"execution_id", run.executionID,
				"workflow_id", run.workflowID,
				"pending_nodes", pending)
			return nil, fmt.Errorf("%w: nodes %s can never run", domain.ErrCircularDependency, strings.Join(pending, ", "))
		}

		tick++
		outcomes := s.dispatchBatch(ctx, run, tick, ready)
		failure := s.applyBatch(run, ready, outcomes, results)
		run.recorder.Checkpoint(ctx)

		// a node failing because the run was cancelled is reported as the
		// cancellation at the top of the loop
		if failure != nil && !run.options.ContinueOnError && run.handle.Err() == nil {
			return nil, failure
		}
	}
}

func (s *Scheduler) dispatchBatch(ctx context.Context, run *runState, tick int, ready []*QueuedNode) []*NodeResult {
	batchCtx, span := s.tracing.StartBatch(ctx, tick, len(ready))
	started := time.Now()

	ids := make([]string, len(ready))
	for i, qn := range ready {
		ids[i] = qn.Node.ID
	}
	run.recorder.Log("Executing batch %d: %s", tick, strings.Join(ids, ", "))
	s.logger.Debug("dispatching batch",
		"execution_id", run.executionID,
		"tick", tick,
		"nodes", ids)

	outcomes := make([]*NodeResult, len(ready))

	var g errgroup.Group
	if s.maxConcurrentNodes > 0 {
		g.SetLimit(s.maxConcurrentNodes)
	}

	for i, qn := range ready {
		i := i
		node := qn.Node
		input := s.nodeInput(run, qn)
		g.Go(func() error {
			outcomes[i] = s.executeNode(batchCtx, run, node, input)
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.IncrementBatchesDispatched()
	tracing.Finish(span, nil, time.Since(started))
	return outcomes
}

// nodeInput snapshots the accumulated inputs so a running node never shares
// a map with the loop.
func (s *Scheduler) nodeInput(run *runState, qn *QueuedNode) domain.NodeInput {
	return domain.NodeInput{
		UserID:      run.userID,
		WorkflowID:  run.workflowID,
		ExecutionID: run.executionID,
		NodeID:      qn.Node.ID,
		Config:      domain.CloneMap(qn.Node.Config),
		Data:        domain.CloneMap(qn.Inputs),
	}
}

func (s *Scheduler) executeNode(ctx context.Context, run *runState, node domain.Node, input domain.NodeInput) *NodeResult {
	result := &NodeResult{NodeID: node.ID, StartedAt: time.Now().UTC()}

	nodeCtx, span := s.tracing.StartNode(ctx, node)
	nodeCtx = domain.WithRunContext(nodeCtx, &domain.RunContext{
		UserID:      run.userID,
		WorkflowID:  run.workflowID,
		ExecutionID: run.executionID,
		NodeID:      node.ID,
		DebugMode:   run.options.DebugMode,
	})

	instance, err := s.registry.CreateNode(node)
	if err != nil {
		result.Err = err
	} else {
		result.Output, result.Err = s.recovery.ExecuteWithRecovery(nodeCtx, instance, input)
	}
	if result.Err == nil && result.Output == nil {
		result.Output = &domain.NodeOutput{Success: true}
	}
	result.CompletedAt = time.Now().UTC()

	var spanErr error
	if failure := nodeFailure(result); failure != nil {
		spanErr = failure
	}
	tracing.Finish(span, spanErr, result.Duration())
	return result
}

// applyBatch is the single writer for the queue. It returns the first
// failure of the batch, if any, after every result has been recorded.
func (s *Scheduler) applyBatch(run *runState, ready []*QueuedNode, outcomes []*NodeResult, results map[string]interface{}) error {
	var firstFailure error

	for i, qn := range ready {
		outcome := outcomes[i]
		qn.Executed = true
		qn.Result = outcome

		failure := nodeFailure(outcome)
		entry := domain.NodeExecution{
			NodeID:      qn.Node.ID,
			Duration:    outcome.Duration(),
			Status:      domain.NodeSuccess,
			StartedAt:   outcome.StartedAt,
			CompletedAt: outcome.CompletedAt,
		}

		if failure == nil {
			data := outcome.Output.Data
			for _, dependent := range qn.Dependents {
				run.queue.Nodes[dependent].Inputs[qn.Node.ID] = data
			}
			results[qn.Node.ID] = data

			for _, warning := range outcome.Output.Warnings {
				run.recorder.Log("Node %s warning: %s", qn.Node.ID, warning)
			}
			run.recorder.Log("Node %s completed in %s", qn.Node.ID, entry.Duration)
		} else {
			entry.Status = domain.NodeFailed
			entry.Error = failure.Message

			run.recorder.Log("Node %s failed: %s", qn.Node.ID, failure.Message)
			s.logger.Warn("node failed",
				"execution_id", run.executionID,
				"node_id", qn.Node.ID,
				"node_type", qn.Node.Type,
				"error", failure.Message,
				"continue_on_error", run.options.ContinueOnError)

			if firstFailure == nil {
				firstFailure = failure
			}
		}

		run.recorder.RecordNode(entry)
		s.metrics.RecordNode(entry.Status, entry.Duration)

		if s.events != nil {
			s.events.PublishNodeCompleted(&domain.NodeCompletedEvent{
				ExecutionID: run.executionID,
				WorkflowID:  run.workflowID,
				NodeID:      qn.Node.ID,
				NodeType:    qn.Node.Type,
				Status:      entry.Status,
				Error:       entry.Error,
				Duration:    entry.Duration,
				CompletedAt: entry.CompletedAt,
			})
		}
	}

	return firstFailure
}

// nodeFailure maps a failed result to a *domain.NodeFailedError and returns
// nil for successes.
func nodeFailure(result *NodeResult) *domain.NodeFailedError {
	if result.Err != nil {
		return domain.NewNodeFailedError(result.NodeID, "", result.Err)
	}
	if result.Output != nil && !result.Output.Success {
		return domain.NewNodeFailedError(result.NodeID, result.Output.Error, nil)
	}
	return nil
}

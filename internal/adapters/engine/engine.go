package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/weft/internal/adapters/tracing"
	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
	"github.com/google/uuid"
)

type Engine struct {
	config     domain.EngineConfig
	registry   ports.NodeRegistryPort
	executions ports.ExecutionStore
	events     ports.EventsPort
	tracing    *tracing.TracingProvider
	metrics    *domain.ExecutionMetrics
	scheduler  *Scheduler
	planner    *Planner
	runs       *runRegistry
	logger     *slog.Logger

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewEngine(
	config domain.EngineConfig,
	registry ports.NodeRegistryPort,
	executions ports.ExecutionStore,
	events ports.EventsPort,
	tracer *tracing.TracingProvider,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = tracing.NewTracingProvider(domain.DefaultTracingConfig(), logger)
	}

	metrics := domain.NewExecutionMetrics()

	return &Engine{
		config:     config,
		registry:   registry,
		executions: executions,
		events:     events,
		tracing:    tracer,
		metrics:    metrics,
		scheduler:  NewScheduler(registry, events, tracer, metrics, config.MaxConcurrentNodes, logger),
		planner:    NewPlanner(logger),
		runs:       newRunRegistry(),
		logger:     logger.With("component", "engine"),
	}
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return domain.ErrAlreadyStarted
	}

	e.ctx, e.cancel = context.WithCancel(ctx)
	e.started = true

	e.logger.Info("starting workflow engine",
		"max_concurrent_nodes", e.config.MaxConcurrentNodes,
		"default_timeout", e.config.DefaultTimeout)
	return nil
}

// Stop aborts every active run and waits for their goroutines, bounded by
// the configured shutdown timeout. Runs still in flight after that are
// finalized directly so no record is left running.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return domain.ErrNotStarted
	}
	e.started = false
	e.mu.Unlock()

	active := e.runs.snapshot()
	e.logger.Debug("stopping workflow engine", "active_runs", len(active))

	for _, run := range active {
		run.handle.Abort()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	timeout := e.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = domain.DefaultEngineConfig().ShutdownTimeout
	}

	select {
	case <-done:
		e.logger.Debug("all runs drained")
	case <-time.After(timeout):
		remaining := e.runs.snapshot()
		e.logger.Warn("shutdown timeout reached, finalizing remaining runs",
			"timeout", timeout,
			"remaining_runs", len(remaining))
		for _, run := range remaining {
			run.recorder.Finalize(context.Background(), nil, domain.ErrExecutionAborted)
		}
	}

	e.cancel()
	e.logger.Info("workflow engine stopped")
	return nil
}

// Execute persists a running record for workflow, starts the run in the
// background and returns the record immediately.
func (e *Engine) Execute(ctx context.Context, workflow *domain.Workflow, userID string, options domain.ExecutionOptions) (*domain.WorkflowExecution, error) {
	e.mu.Lock()
	started, parent := e.started, e.ctx
	e.mu.Unlock()

	if !started {
		return nil, domain.ErrNotStarted
	}
	if workflow == nil {
		return nil, fmt.Errorf("%w: workflow is required", domain.ErrInvalidInput)
	}

	if options.Timeout <= 0 && e.config.DefaultTimeout > 0 {
		options.Timeout = e.config.DefaultTimeout
	}
	options = options.WithDefaults()

	record := &domain.WorkflowExecution{
		ID:         uuid.NewString(),
		WorkflowID: workflow.ID,
		UserID:     userID,
		StartTime:  time.Now().UTC(),
		Status:     domain.ExecutionRunning,
	}

	if err := e.executions.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	snapshot := workflow.Clone()
	queue := buildExecutionQueue(snapshot, options.CustomInput)
	handle := newRunHandle(parent, options.Timeout)
	recorder := NewRecorder(record, e.executions, options.DebugMode, e.config.PersistCheckpoints, e.logger)
	recorder.OnFinalize(e.complete)

	recorder.Log("Starting execution of workflow %s with %d nodes", workflow.ID, len(queue.Order))
	recorder.Log("Timeout set to %s, continue on error: %t", options.Timeout, options.ContinueOnError)

	run := &runState{
		executionID: record.ID,
		workflowID:  workflow.ID,
		userID:      userID,
		workflow:    snapshot,
		queue:       queue,
		recorder:    recorder,
		handle:      handle,
		options:     options,
	}

	e.runs.add(&activeRun{
		executionID: record.ID,
		workflowID:  workflow.ID,
		handle:      handle,
		recorder:    recorder,
	})
	e.metrics.IncrementExecutionsStarted()

	e.logger.Info("execution started",
		"execution_id", record.ID,
		"workflow_id", workflow.ID,
		"user_id", userID,
		"nodes", len(queue.Order),
		"timeout", options.Timeout)

	if e.events != nil {
		e.events.PublishExecutionStarted(&domain.ExecutionStartedEvent{
			ExecutionID: record.ID,
			WorkflowID:  workflow.ID,
			UserID:      userID,
			RootNodes:   queue.rootNodes(),
			StartedAt:   record.StartTime,
		})
	}

	e.wg.Add(2)
	go e.watchDeadline(run)
	go e.run(run, record)

	return record.Clone(), nil
}

func (e *Engine) run(run *runState, record *domain.WorkflowExecution) {
	defer e.wg.Done()
	defer run.handle.Release()

	ctx, span := e.tracing.StartExecution(run.handle.Context(), record, len(run.queue.Order))

	results, runErr := e.scheduler.Run(ctx, run)
	final, _ := run.recorder.Finalize(ctx, results, runErr)

	tracing.Finish(span, runErr, final.Metrics.TotalDuration)
}

// watchDeadline finalizes the record as soon as the run's signal fires,
// without waiting for the in-flight batch to return.
func (e *Engine) watchDeadline(run *runState) {
	defer e.wg.Done()

	select {
	case <-run.recorder.Done():
	case <-run.handle.Context().Done():
		if runErr := run.handle.Err(); runErr != nil {
			run.recorder.Finalize(context.Background(), nil, runErr)
		}
	}
}

// complete is the finalize hook of every run. The recorder guarantees it
// runs once, for whichever of the run goroutine, Abort or Stop finalized
// the record, and before waiters are released.
func (e *Engine) complete(final *domain.WorkflowExecution, runErr error) {
	e.runs.remove(final.ID)

	e.metrics.RecordExecution(final.Status, final.Metrics.TotalDuration)
	if errors.Is(runErr, domain.ErrExecutionAborted) {
		e.metrics.IncrementExecutionsAborted()
	}

	e.logger.Info("execution finished",
		"execution_id", final.ID,
		"workflow_id", final.WorkflowID,
		"status", final.Status,
		"duration", final.Metrics.TotalDuration,
		"error", final.Error)

	if e.events != nil {
		e.events.PublishExecutionCompleted(&domain.ExecutionCompletedEvent{
			ExecutionID: final.ID,
			WorkflowID:  final.WorkflowID,
			Status:      final.Status,
			Error:       final.Error,
			Duration:    final.Metrics.TotalDuration,
			CompletedAt: *final.EndTime,
		})
	}
}

// Abort stops dispatching further batches of a running execution and
// finalizes its record as aborted. Nodes already in flight are not
// interrupted beyond their context being cancelled. It reports false when
// the execution is not running.
func (e *Engine) Abort(ctx context.Context, executionID string) (bool, error) {
	run, ok := e.runs.get(executionID)
	if !ok {
		return false, nil
	}

	run.handle.Abort()
	final, _ := run.recorder.Finalize(ctx, nil, domain.ErrExecutionAborted)

	e.logger.Debug("execution aborted",
		"execution_id", executionID,
		"workflow_id", run.workflowID,
		"status", final.Status)
	return true, nil
}

// Wait blocks until the execution reaches a terminal state or ctx ends.
func (e *Engine) Wait(ctx context.Context, executionID string) (*domain.WorkflowExecution, error) {
	if run, ok := e.runs.get(executionID); ok {
		select {
		case <-run.recorder.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return e.executions.FindOne(ctx, executionID)
}

func (e *Engine) Plan(workflow *domain.Workflow) ([][]string, error) {
	return e.planner.Plan(workflow)
}

func (e *Engine) IsRunning(executionID string) bool {
	_, ok := e.runs.get(executionID)
	return ok
}

func (e *Engine) ActiveExecutions() int {
	return e.runs.count()
}

func (e *Engine) GetMetrics() domain.ExecutionMetrics {
	return e.metrics.Snapshot()
}

package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/eleven-am/weft/internal/adapters/engine"
	"github.com/eleven-am/weft/internal/adapters/events"
	"github.com/eleven-am/weft/internal/adapters/httpapi"
	"github.com/eleven-am/weft/internal/adapters/memory"
	"github.com/eleven-am/weft/internal/adapters/repository"
	"github.com/eleven-am/weft/internal/adapters/storage"
	"github.com/eleven-am/weft/internal/adapters/tracing"
	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
	"github.com/google/uuid"
)

// Manager wires storage, the node registry, the engine and the optional
// HTTP transport behind the workflow API.
type Manager struct {
	config     *domain.Config
	db         *badger.DB
	storage    ports.StoragePort
	workflows  ports.WorkflowStore
	executions ports.ExecutionStore
	registry   ports.NodeRegistryPort
	events     *events.Manager
	engine     ports.EnginePort
	http       *httpapi.Server
	logger     *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	gcStop  context.CancelFunc
	gcDone  chan struct{}
}

var _ httpapi.Service = (*Manager)(nil)

// New builds a manager over dataDir; an empty dataDir keeps everything in
// memory.
func New(dataDir string, logger *slog.Logger) (*Manager, error) {
	return NewWithConfig(domain.NewConfigFromSimple(dataDir, logger))
}

func NewWithConfig(config *domain.Config) (*Manager, error) {
	if config == nil {
		return nil, domain.NewConfigError("config", domain.ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "weft")

	db, err := storage.OpenBadger(config, logger)
	if err != nil {
		return nil, err
	}

	appStorage := storage.NewAppStorage(db, logger)
	executions := repository.NewExecutionRepository(appStorage, logger)
	registry := memory.NewNodeTypeRegistry(logger)
	eventManager := events.NewManager(logger)
	tracer := tracing.NewTracingProvider(config.Tracing, logger)

	m := &Manager{
		config:     config,
		db:         db,
		storage:    appStorage,
		workflows:  repository.NewWorkflowRepository(appStorage, logger),
		executions: executions,
		registry:   registry,
		events:     eventManager,
		engine:     engine.NewEngine(config.Engine, registry, executions, eventManager, tracer, logger),
		logger:     logger,
	}

	if config.HTTP.Enabled {
		m.http = httpapi.NewServer(m, config.HTTP, logger)
	}

	return m, nil
}

func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return fmt.Errorf("%w: manager was stopped", domain.ErrNotStarted)
	}
	if m.started {
		return domain.ErrAlreadyStarted
	}

	if err := m.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	if m.http != nil {
		if err := m.http.Start(ctx); err != nil {
			_ = m.engine.Stop()
			return fmt.Errorf("failed to start http server: %w", err)
		}
	}

	gcCtx, gcStop := context.WithCancel(context.WithoutCancel(ctx))
	m.gcStop = gcStop
	m.gcDone = make(chan struct{})
	go func() {
		defer close(m.gcDone)
		storage.RunValueLogGC(gcCtx, m.db, m.config, m.logger)
	}()

	m.started = true
	m.logger.Info("weft started",
		"data_dir", m.config.DataDir,
		"in_memory", m.config.InMemory,
		"http_enabled", m.http != nil)
	return nil
}

// Stop aborts running executions, shuts the transport down and closes
// storage. A stopped manager cannot be restarted.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true

	var errs []error

	if m.started {
		if m.http != nil {
			ctx, cancel := context.WithTimeout(context.Background(), m.config.Engine.ShutdownTimeout)
			if err := m.http.Stop(ctx); err != nil && !errors.Is(err, domain.ErrNotStarted) {
				errs = append(errs, fmt.Errorf("stop http server: %w", err))
			}
			cancel()
		}

		if err := m.engine.Stop(); err != nil && !errors.Is(err, domain.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("stop engine: %w", err))
		}

		m.gcStop()
		<-m.gcDone
		m.started = false
	}

	m.events.Wait()

	if err := m.storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}

	m.logger.Info("weft stopped")
	return errors.Join(errs...)
}

// HTTPAddr is the address the HTTP transport is bound to, or "" when it is
// disabled or not started.
func (m *Manager) HTTPAddr() string {
	if m.http == nil {
		return ""
	}
	return m.http.Addr()
}

func (m *Manager) RegisterNodeType(nodeType string, factory ports.NodeFactory) error {
	return m.registry.RegisterNodeType(nodeType, factory)
}

func (m *Manager) UnregisterNodeType(nodeType string) error {
	return m.registry.UnregisterNodeType(nodeType)
}

func (m *Manager) ListNodeTypes() []string {
	return m.registry.ListNodeTypes()
}

func (m *Manager) CreateWorkflow(ctx context.Context, userID string, definition domain.WorkflowDefinition) (*domain.Workflow, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewValidationError("userId", "is required")
	}
	if err := domain.ValidateGraph(definition.Nodes, definition.Connections); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(definition.Name)
	if name == "" {
		name = domain.DefaultWorkflowName
	}

	now := time.Now().UTC()
	wf := &domain.Workflow{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: definition.Description,
		Nodes:       nonNilNodes(domain.CloneNodes(definition.Nodes)),
		Connections: append([]domain.NodeConnection{}, definition.Connections...),
		Tags:        append([]string{}, definition.Tags...),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := m.workflows.Insert(ctx, wf); err != nil {
		return nil, err
	}

	m.logger.Debug("workflow created",
		"workflow_id", wf.ID,
		"user_id", userID,
		"nodes", len(wf.Nodes))
	return wf.Clone(), nil
}

// UpdateWorkflow merges patch into the stored workflow, validates the
// result and bumps its version.
func (m *Manager) UpdateWorkflow(ctx context.Context, id string, patch domain.WorkflowPatch) (*domain.Workflow, error) {
	now := time.Now().UTC()

	updated, err := m.workflows.UpdateOne(ctx, id, func(current *domain.Workflow) error {
		next, err := domain.ApplyPatch(current, patch)
		if err != nil {
			return err
		}

		if patch.Schedule != nil {
			resolved, err := patch.Schedule.Resolve(now)
			if err != nil {
				return err
			}
			next.Schedule = &resolved
		}
		if strings.TrimSpace(next.Name) == "" {
			next.Name = domain.DefaultWorkflowName
		}
		if err := next.Validate(); err != nil {
			return err
		}

		next.ID = current.ID
		next.UserID = current.UserID
		next.CreatedAt = current.CreatedAt
		next.Version = current.Version + 1
		next.UpdatedAt = now

		*current = *next
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("workflow updated", "workflow_id", id, "version", updated.Version)
	return updated, nil
}

func (m *Manager) DeleteWorkflow(ctx context.Context, id string) (bool, error) {
	deleted, err := m.workflows.DeleteOne(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		m.logger.Debug("workflow deleted", "workflow_id", id)
	}
	return deleted, nil
}

func (m *Manager) GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	return m.workflows.FindOne(ctx, id)
}

func (m *Manager) ListUserWorkflows(ctx context.Context, userID string) ([]*domain.Workflow, error) {
	return m.workflows.Find(ctx, domain.WorkflowFilter{UserID: userID})
}

// CloneWorkflow copies the graph and tags of a workflow into a new,
// unpublished and unscheduled workflow owned by userID (the source owner
// when empty).
func (m *Manager) CloneWorkflow(ctx context.Context, id, userID string) (*domain.Workflow, error) {
	source, err := m.workflows.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		userID = source.UserID
	}

	now := time.Now().UTC()
	clone := &domain.Workflow{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        source.Name + " (Clone)",
		Description: source.Description,
		Nodes:       nonNilNodes(domain.CloneNodes(source.Nodes)),
		Connections: append([]domain.NodeConnection{}, source.Connections...),
		Tags:        append([]string{}, source.Tags...),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := m.workflows.Insert(ctx, clone); err != nil {
		return nil, err
	}

	m.logger.Debug("workflow cloned", "source_workflow_id", id, "workflow_id", clone.ID)
	return clone.Clone(), nil
}

// ScheduleWorkflow stores the schedule intent and its next activation.
// Nothing is triggered by it.
func (m *Manager) ScheduleWorkflow(ctx context.Context, id string, schedule domain.WorkflowSchedule) (*domain.Workflow, error) {
	return m.UpdateWorkflow(ctx, id, domain.WorkflowPatch{Schedule: &schedule})
}

func (m *Manager) PublishWorkflow(ctx context.Context, id string, publish bool) (*domain.Workflow, error) {
	return m.UpdateWorkflow(ctx, id, domain.WorkflowPatch{Published: &publish})
}

func (m *Manager) PlanWorkflow(ctx context.Context, id string) ([][]string, error) {
	wf, err := m.workflows.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.engine.Plan(wf)
}

// ExecuteWorkflow starts a run of the stored workflow and returns its
// running record without waiting. An empty userID runs as the owner.
func (m *Manager) ExecuteWorkflow(ctx context.Context, workflowID, userID string, options domain.ExecutionOptions) (*domain.WorkflowExecution, error) {
	wf, err := m.workflows.FindOne(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		userID = wf.UserID
	}
	return m.engine.Execute(ctx, wf, userID, options)
}

func (m *Manager) AbortExecution(ctx context.Context, executionID string) (bool, error) {
	return m.engine.Abort(ctx, executionID)
}

func (m *Manager) WaitForExecution(ctx context.Context, executionID string) (*domain.WorkflowExecution, error) {
	return m.engine.Wait(ctx, executionID)
}

func (m *Manager) GetExecution(ctx context.Context, id string) (*domain.WorkflowExecution, error) {
	return m.executions.FindOne(ctx, id)
}

// GetWorkflowExecutions pages through the runs of a workflow, newest first.
func (m *Manager) GetWorkflowExecutions(ctx context.Context, workflowID string, limit, offset int) (*domain.ExecutionPage, error) {
	if limit <= 0 {
		limit = domain.DefaultExecutionPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	executions, err := m.executions.Find(ctx, domain.ExecutionFilter{
		WorkflowID: workflowID,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, err
	}

	total, err := m.executions.Count(ctx, domain.ExecutionFilter{WorkflowID: workflowID})
	if err != nil {
		return nil, err
	}

	if executions == nil {
		executions = []*domain.WorkflowExecution{}
	}
	return &domain.ExecutionPage{Executions: executions, Total: total}, nil
}

func (m *Manager) IsRunning(executionID string) bool {
	return m.engine.IsRunning(executionID)
}

func (m *Manager) OnExecutionStarted(handler func(*domain.ExecutionStartedEvent)) func() {
	return m.events.OnExecutionStarted(handler)
}

func (m *Manager) OnExecutionCompleted(handler func(*domain.ExecutionCompletedEvent)) func() {
	return m.events.OnExecutionCompleted(handler)
}

func (m *Manager) OnNodeCompleted(handler func(*domain.NodeCompletedEvent)) func() {
	return m.events.OnNodeCompleted(handler)
}

// Subscribe registers handler for every event whose topic matches pattern
// ("execution:*", "node:completed", "*").
func (m *Manager) Subscribe(pattern string, handler func(topic string, event interface{})) string {
	return m.events.Subscribe(pattern, handler)
}

func (m *Manager) Unsubscribe(id string) {
	m.events.Unsubscribe(id)
}

func (m *Manager) GetMetrics() domain.ExecutionMetrics {
	return m.engine.GetMetrics()
}

func nonNilNodes(nodes []domain.Node) []domain.Node {
	if nodes == nil {
		return []domain.Node{}
	}
	return nodes
}

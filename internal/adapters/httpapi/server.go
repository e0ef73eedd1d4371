package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Service is the workflow API the HTTP layer exposes.
type Service interface {
	CreateWorkflow(ctx context.Context, userID string, definition domain.WorkflowDefinition) (*domain.Workflow, error)
	GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error)
	ListUserWorkflows(ctx context.Context, userID string) ([]*domain.Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, patch domain.WorkflowPatch) (*domain.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) (bool, error)
	CloneWorkflow(ctx context.Context, id, userID string) (*domain.Workflow, error)
	ScheduleWorkflow(ctx context.Context, id string, schedule domain.WorkflowSchedule) (*domain.Workflow, error)
	PublishWorkflow(ctx context.Context, id string, publish bool) (*domain.Workflow, error)
	PlanWorkflow(ctx context.Context, id string) ([][]string, error)

	ExecuteWorkflow(ctx context.Context, workflowID, userID string, options domain.ExecutionOptions) (*domain.WorkflowExecution, error)
	GetWorkflowExecutions(ctx context.Context, workflowID string, limit, offset int) (*domain.ExecutionPage, error)
	GetExecution(ctx context.Context, id string) (*domain.WorkflowExecution, error)
	AbortExecution(ctx context.Context, id string) (bool, error)
}

type Server struct {
	service Service
	config  domain.HTTPConfig
	router  *mux.Router
	handler http.Handler
	logger  *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func NewServer(service Service, config domain.HTTPConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		service: service,
		config:  config,
		router:  mux.NewRouter(),
		logger:  logger.With("component", "http"),
	}

	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
	})

	s.registerRoutes()
	s.handler = c.Handler(s.router)
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/workflows", s.handleCreateWorkflow).Methods(http.MethodPost)
	s.router.HandleFunc("/users/{userId}/workflows", s.handleListUserWorkflows).Methods(http.MethodGet)

	s.router.HandleFunc("/workflows/{id}", s.handleGetWorkflow).Methods(http.MethodGet)
	s.router.HandleFunc("/workflows/{id}", s.handleUpdateWorkflow).Methods(http.MethodPatch)
	s.router.HandleFunc("/workflows/{id}", s.handleDeleteWorkflow).Methods(http.MethodDelete)
	s.router.HandleFunc("/workflows/{id}/clone", s.handleCloneWorkflow).Methods(http.MethodPost)
	s.router.HandleFunc("/workflows/{id}/schedule", s.handleScheduleWorkflow).Methods(http.MethodPut)
	s.router.HandleFunc("/workflows/{id}/publish", s.handlePublishWorkflow).Methods(http.MethodPut)
	s.router.HandleFunc("/workflows/{id}/plan", s.handlePlanWorkflow).Methods(http.MethodGet)

	s.router.HandleFunc("/workflows/{id}/executions", s.handleExecuteWorkflow).Methods(http.MethodPost)
	s.router.HandleFunc("/workflows/{id}/executions", s.handleListExecutions).Methods(http.MethodGet)
	s.router.HandleFunc("/executions/{id}", s.handleGetExecution).Methods(http.MethodGet)
	s.router.HandleFunc("/executions/{id}/abort", s.handleAbortExecution).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return domain.ErrAlreadyStarted
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	server := s.server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped unexpectedly", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", listener.Addr().String())
	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return domain.ErrNotStarted
	}

	s.logger.Debug("shutting down http server")
	return server.Shutdown(ctx)
}

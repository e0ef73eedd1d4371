package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/xjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) CreateWorkflow(ctx context.Context, userID string, definition domain.WorkflowDefinition) (*domain.Workflow, error) {
	args := m.Called(ctx, userID, definition)
	wf, _ := args.Get(0).(*domain.Workflow)
	return wf, args.Error(1)
}

func (m *mockService) GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	args := m.Called(ctx, id)
	wf, _ := args.Get(0).(*domain.Workflow)
	return wf, args.Error(1)
}

func (m *mockService) ListUserWorkflows(ctx context.Context, userID string) ([]*domain.Workflow, error) {
	args := m.Called(ctx, userID)
	workflows, _ := args.Get(0).([]*domain.Workflow)
	return workflows, args.Error(1)
}

func (m *mockService) UpdateWorkflow(ctx context.Context, id string, patch domain.WorkflowPatch) (*domain.Workflow, error) {
	args := m.Called(ctx, id, patch)
	wf, _ := args.Get(0).(*domain.Workflow)
	return wf, args.Error(1)
}

func (m *mockService) DeleteWorkflow(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockService) CloneWorkflow(ctx context.Context, id, userID string) (*domain.Workflow, error) {
	args := m.Called(ctx, id, userID)
	wf, _ := args.Get(0).(*domain.Workflow)
	return wf, args.Error(1)
}

func (m *mockService) ScheduleWorkflow(ctx context.Context, id string, schedule domain.WorkflowSchedule) (*domain.Workflow, error) {
	args := m.Called(ctx, id, schedule)
	wf, _ := args.Get(0).(*domain.Workflow)
	return wf, args.Error(1)
}

func (m *mockService) PublishWorkflow(ctx context.Context, id string, publish bool) (*domain.Workflow, error) {
	args := m.Called(ctx, id, publish)
	wf, _ := args.Get(0).(*domain.Workflow)
	return wf, args.Error(1)
}

func (m *mockService) PlanWorkflow(ctx context.Context, id string) ([][]string, error) {
	args := m.Called(ctx, id)
	levels, _ := args.Get(0).([][]string)
	return levels, args.Error(1)
}

func (m *mockService) ExecuteWorkflow(ctx context.Context, workflowID, userID string, options domain.ExecutionOptions) (*domain.WorkflowExecution, error) {
	args := m.Called(ctx, workflowID, userID, options)
	exec, _ := args.Get(0).(*domain.WorkflowExecution)
	return exec, args.Error(1)
}

func (m *mockService) GetWorkflowExecutions(ctx context.Context, workflowID string, limit, offset int) (*domain.ExecutionPage, error) {
	args := m.Called(ctx, workflowID, limit, offset)
	page, _ := args.Get(0).(*domain.ExecutionPage)
	return page, args.Error(1)
}

func (m *mockService) GetExecution(ctx context.Context, id string) (*domain.WorkflowExecution, error) {
	args := m.Called(ctx, id)
	exec, _ := args.Get(0).(*domain.WorkflowExecution)
	return exec, args.Error(1)
}

func (m *mockService) AbortExecution(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func newTestServer(t *testing.T) (*Server, *mockService) {
	t.Helper()

	service := &mockService{}
	t.Cleanup(func() { service.AssertExpectations(t) })
	return NewServer(service, domain.DefaultHTTPConfig(), nil), service
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, xjson.Unmarshal(rec.Body.Bytes(), v))
}

func TestCreateWorkflow(t *testing.T) {
	s, service := newTestServer(t)

	definition := domain.WorkflowDefinition{
		Name:  "etl",
		Nodes: []domain.Node{{ID: "A", Type: "http"}},
	}
	service.On("CreateWorkflow", mock.Anything, "user-1", definition).
		Return(&domain.Workflow{ID: "wf-1", UserID: "user-1", Name: "etl"}, nil)

	rec := serve(s, http.MethodPost, "/workflows",
		`{"userId":"user-1","name":"etl","nodes":[{"id":"A","type":"http"}]}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var wf domain.Workflow
	decodeBody(t, rec, &wf)
	assert.Equal(t, "wf-1", wf.ID)
}

func TestCreateWorkflow_RequiresUser(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodPost, "/workflows", `{"name":"etl"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	decodeBody(t, rec, &body)
	assert.Contains(t, body.Error, "userId")
}

func TestCreateWorkflow_RejectsMalformedBody(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"syntax", `{"userId":`},
		{"unknown field", `{"userId":"u","bogus":true}`},
		{"wrong type", `{"userId":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, http.MethodPost, "/workflows", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", domain.NewKeyNotFoundError("workflow:x"), http.StatusNotFound},
		{"validation", domain.NewValidationError("nodes", "bad"), http.StatusBadRequest},
		{"circular", domain.ErrCircularDependency, http.StatusBadRequest},
		{"not started", domain.ErrNotStarted, http.StatusServiceUnavailable},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, service := newTestServer(t)
			service.On("GetWorkflow", mock.Anything, "x").Return(nil, tt.err)

			rec := serve(s, http.MethodGet, "/workflows/x", "")
			assert.Equal(t, tt.status, rec.Code)

			var body errorResponse
			decodeBody(t, rec, &body)
			assert.Equal(t, tt.err.Error(), body.Error)
		})
	}
}

func TestListUserWorkflows_EmptyIsArray(t *testing.T) {
	s, service := newTestServer(t)
	service.On("ListUserWorkflows", mock.Anything, "alice").Return(nil, nil)

	rec := serve(s, http.MethodGet, "/users/alice/workflows", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestUpdateWorkflow(t *testing.T) {
	s, service := newTestServer(t)

	service.On("UpdateWorkflow", mock.Anything, "wf-1", mock.MatchedBy(func(p domain.WorkflowPatch) bool {
		return p.Name != nil && *p.Name == "renamed" && p.Nodes == nil
	})).Return(&domain.Workflow{ID: "wf-1", Name: "renamed", Version: 2}, nil)

	rec := serve(s, http.MethodPatch, "/workflows/wf-1", `{"name":"renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var wf domain.Workflow
	decodeBody(t, rec, &wf)
	assert.Equal(t, int64(2), wf.Version)
}

func TestDeleteWorkflow(t *testing.T) {
	s, service := newTestServer(t)
	service.On("DeleteWorkflow", mock.Anything, "wf-1").Return(false, nil)

	rec := serve(s, http.MethodDelete, "/workflows/wf-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":false}`, rec.Body.String())
}

func TestCloneWorkflow_EmptyBody(t *testing.T) {
	s, service := newTestServer(t)
	service.On("CloneWorkflow", mock.Anything, "wf-1", "").
		Return(&domain.Workflow{ID: "wf-2"}, nil)

	rec := serve(s, http.MethodPost, "/workflows/wf-1/clone", "")
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestScheduleWorkflow(t *testing.T) {
	s, service := newTestServer(t)
	service.On("ScheduleWorkflow", mock.Anything, "wf-1", domain.WorkflowSchedule{
		Enabled:   true,
		Frequency: domain.FrequencyDaily,
		Time:      "09:00",
	}).Return(&domain.Workflow{ID: "wf-1"}, nil)

	rec := serve(s, http.MethodPut, "/workflows/wf-1/schedule",
		`{"enabled":true,"frequency":"daily","time":"09:00"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestPublishWorkflow(t *testing.T) {
	s, service := newTestServer(t)
	service.On("PublishWorkflow", mock.Anything, "wf-1", true).
		Return(&domain.Workflow{ID: "wf-1", Published: true}, nil)

	rec := serve(s, http.MethodPut, "/workflows/wf-1/publish", `{"published":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var wf domain.Workflow
	decodeBody(t, rec, &wf)
	assert.True(t, wf.Published)
}

func TestPlanWorkflow(t *testing.T) {
	s, service := newTestServer(t)
	service.On("PlanWorkflow", mock.Anything, "wf-1").Return([][]string{{"A"}, {"B", "C"}}, nil)

	rec := serve(s, http.MethodGet, "/workflows/wf-1/plan", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"workflowId":"wf-1","levels":[["A"],["B","C"]]}`, rec.Body.String())
}

func TestExecuteWorkflow(t *testing.T) {
	s, service := newTestServer(t)

	service.On("ExecuteWorkflow", mock.Anything, "wf-1", "user-1", mock.MatchedBy(func(o domain.ExecutionOptions) bool {
		return o.Timeout == 1500*time.Millisecond && o.DebugMode && !o.ContinueOnError && o.CustomInput["x"] == 1.0
	})).Return(&domain.WorkflowExecution{ID: "exec-1", Status: domain.ExecutionRunning}, nil)

	rec := serve(s, http.MethodPost, "/workflows/wf-1/executions",
		`{"userId":"user-1","timeoutMs":1500,"debugMode":true,"customInput":{"x":1}}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var exec domain.WorkflowExecution
	decodeBody(t, rec, &exec)
	assert.Equal(t, "exec-1", exec.ID)
	assert.Equal(t, domain.ExecutionRunning, exec.Status)
}

func TestExecuteWorkflow_DefaultTimeout(t *testing.T) {
	s, service := newTestServer(t)

	service.On("ExecuteWorkflow", mock.Anything, "wf-1", "", mock.MatchedBy(func(o domain.ExecutionOptions) bool {
		return o.Timeout == domain.DefaultExecutionTimeout
	})).Return(&domain.WorkflowExecution{ID: "exec-1"}, nil)

	rec := serve(s, http.MethodPost, "/workflows/wf-1/executions", "")
	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
}

func TestListExecutions(t *testing.T) {
	s, service := newTestServer(t)
	service.On("GetWorkflowExecutions", mock.Anything, "wf-1", domain.DefaultExecutionPageLimit, 0).
		Return(&domain.ExecutionPage{Executions: []*domain.WorkflowExecution{}, Total: 0}, nil)
	service.On("GetWorkflowExecutions", mock.Anything, "wf-1", 5, 10).
		Return(&domain.ExecutionPage{Executions: []*domain.WorkflowExecution{{ID: "e"}}, Total: 11}, nil)

	rec := serve(s, http.MethodGet, "/workflows/wf-1/executions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, http.MethodGet, "/workflows/wf-1/executions?limit=5&offset=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page domain.ExecutionPage
	decodeBody(t, rec, &page)
	assert.Equal(t, 11, page.Total)
	assert.Len(t, page.Executions, 1)
}

func TestListExecutions_BadPaging(t *testing.T) {
	s, _ := newTestServer(t)

	for _, query := range []string{"limit=abc", "limit=-1", "offset=-3"} {
		rec := serve(s, http.MethodGet, "/workflows/wf-1/executions?"+query, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestGetExecution(t *testing.T) {
	s, service := newTestServer(t)
	service.On("GetExecution", mock.Anything, "exec-1").
		Return(&domain.WorkflowExecution{ID: "exec-1", Status: domain.ExecutionSuccess}, nil)

	rec := serve(s, http.MethodGet, "/executions/exec-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var exec domain.WorkflowExecution
	decodeBody(t, rec, &exec)
	assert.Equal(t, domain.ExecutionSuccess, exec.Status)
}

func TestAbortExecution(t *testing.T) {
	s, service := newTestServer(t)
	service.On("AbortExecution", mock.Anything, "exec-1").Return(true, nil)

	rec := serve(s, http.MethodPost, "/executions/exec-1/abort", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"aborted":true}`, rec.Body.String())
}

func TestUnknownRouteAndMethod(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"route not found"}`, rec.Body.String())

	rec = serve(s, http.MethodPut, "/executions/exec-1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	s, service := newTestServer(t)
	service.On("GetWorkflow", mock.Anything, "wf-1").Return(&domain.Workflow{ID: "wf-1"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/workflows/wf-1", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	preflight := httptest.NewRequest(http.MethodOptions, "/workflows/wf-1", nil)
	preflight.Header.Set("Origin", "http://example.com")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, preflight)

	assert.Less(t, rec.Code, 300)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
}

func TestServer_StartStop(t *testing.T) {
	config := domain.DefaultHTTPConfig()
	config.Addr = "127.0.0.1:0"
	service := &mockService{}
	service.On("GetExecution", mock.Anything, "exec-1").
		Return(&domain.WorkflowExecution{ID: "exec-1"}, nil)

	s := NewServer(service, config, nil)
	assert.Empty(t, s.Addr())

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), domain.ErrAlreadyStarted)

	resp, err := http.Get("http://" + s.Addr() + "/executions/exec-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	assert.ErrorIs(t, s.Stop(context.Background()), domain.ErrNotStarted)
	service.AssertExpectations(t)
}

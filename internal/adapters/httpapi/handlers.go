package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/xjson"
	"github.com/gorilla/mux"
)

type createWorkflowRequest struct {
	UserID      string                  `json:"userId"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Nodes       []domain.Node           `json:"nodes"`
	Connections []domain.NodeConnection `json:"connections"`
	Tags        []string                `json:"tags"`
}

func (r createWorkflowRequest) definition() domain.WorkflowDefinition {
	return domain.WorkflowDefinition{
		Name:        r.Name,
		Description: r.Description,
		Nodes:       r.Nodes,
		Connections: r.Connections,
		Tags:        r.Tags,
	}
}

type cloneWorkflowRequest struct {
	UserID string `json:"userId"`
}

type publishRequest struct {
	Published bool `json:"published"`
}

type planResponse struct {
	WorkflowID string     `json:"workflowId"`
	Levels     [][]string `json:"levels"`
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	wf, err := s.service.CreateWorkflow(r.Context(), req.UserID, req.definition())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wf)
}

func (s *Server) handleListUserWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.service.ListUserWorkflows(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if workflows == nil {
		workflows = []*domain.Workflow{}
	}
	writeJSON(w, http.StatusOK, workflows)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.service.GetWorkflow(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	var patch domain.WorkflowPatch
	if !s.decode(w, r, &patch) {
		return
	}

	wf, err := s.service.UpdateWorkflow(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.service.DeleteWorkflow(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (s *Server) handleCloneWorkflow(w http.ResponseWriter, r *http.Request) {
	var req cloneWorkflowRequest
	if !s.decode(w, r, &req) {
		return
	}

	wf, err := s.service.CloneWorkflow(r.Context(), mux.Vars(r)["id"], req.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wf)
}

func (s *Server) handleScheduleWorkflow(w http.ResponseWriter, r *http.Request) {
	var schedule domain.WorkflowSchedule
	if !s.decode(w, r, &schedule) {
		return
	}

	wf, err := s.service.ScheduleWorkflow(r.Context(), mux.Vars(r)["id"], schedule)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handlePublishWorkflow(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if !s.decode(w, r, &req) {
		return
	}

	wf, err := s.service.PublishWorkflow(r.Context(), mux.Vars(r)["id"], req.Published)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handlePlanWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	levels, err := s.service.PlanWorkflow(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if levels == nil {
		levels = [][]string{}
	}
	writeJSON(w, http.StatusOK, planResponse{WorkflowID: id, Levels: levels})
}

func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var req domain.ExecutionRequest
	if !s.decode(w, r, &req) {
		return
	}

	exec, err := s.service.ExecuteWorkflow(r.Context(), mux.Vars(r)["id"], req.UserID, req.Options())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, exec)
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", domain.DefaultExecutionPageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.service.GetWorkflowExecutions(r.Context(), mux.Vars(r)["id"], limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.service.GetExecution(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleAbortExecution(w http.ResponseWriter, r *http.Request) {
	aborted, err := s.service.AbortExecution(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"aborted": aborted})
}

// decode reads the request body into v. An empty body leaves v untouched.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := xjson.Decode(r.Body, v, true); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return value, nil
}

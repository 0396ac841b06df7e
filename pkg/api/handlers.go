package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/redsunjin/NestClaw/pkg/auth"
	"github.com/redsunjin/NestClaw/pkg/engine"
	"github.com/redsunjin/NestClaw/pkg/task"
)

type createTaskRequest struct {
	Title        string         `json:"title"`
	TemplateType string         `json:"template_type"`
	Input        map[string]any `json:"input"`
	RequestedBy  string         `json:"requested_by"`
}

type runTaskRequest struct {
	TaskID         string `json:"task_id"`
	IdempotencyKey string `json:"idempotency_key"`
	RunMode        string `json:"run_mode"`
}

type decisionRequest struct {
	ActedBy string `json:"acted_by"`
	Comment string `json:"comment"`
}

// roleAllowed enforces the per-action role table.
func roleAllowed(role, action string, allowed ...string) error {
	for _, a := range allowed {
		if role == a {
			return nil
		}
	}
	return &forbiddenError{msg: fmt.Sprintf("role '%s' is not allowed for action: %s", role, action)}
}

func (s *Server) requireRole(w http.ResponseWriter, r *http.Request, actor auth.ActorContext, action string, allowed ...string) bool {
	if err := roleAllowed(actor.Role, action, allowed...); err != nil {
		writeError(w, r, http.StatusForbidden, CodeForbidden, err.Error())
		return false
	}
	return true
}

// taskAccess builds the authorization callback the engine invokes
// after looking the task up, so a missing task stays a 404 no matter
// who asks. Requesters only reach their own tasks.
func taskAccess(actor auth.ActorContext, action string, allowed ...string) func(*task.Task) error {
	return func(t *task.Task) error {
		if err := roleAllowed(actor.Role, action, allowed...); err != nil {
			return err
		}
		if actor.Role == auth.RoleRequester && t.RequestedBy != actor.ActorID {
			return engine.ErrOwnership
		}
		return nil
	}
}

func (s *Server) actor(w http.ResponseWriter, r *http.Request) (auth.ActorContext, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing authentication context")
	}
	return actor, ok
}

// pathSegment returns the single path element after prefix, or ""
// when the remainder is empty or has further segments.
func pathSegment(path, prefix string) string {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	var req createTaskRequest
	if !s.decodeBody(w, r, s.schemas.createTask, &req) {
		return
	}
	if !s.requireRole(w, r, actor, "create_task", auth.RoleRequester, auth.RoleAdmin) {
		return
	}
	if actor.Role == auth.RoleRequester && req.RequestedBy != actor.ActorID {
		writeError(w, r, http.StatusForbidden, CodeForbidden, "requester must match requested_by")
		return
	}
	if err := s.engine.Templates().ValidateInput(req.TemplateType, req.Input); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	t, err := s.engine.CreateTask(r.Context(), engine.CreateRequest{
		Title:        req.Title,
		TemplateType: req.TemplateType,
		Input:        req.Input,
		RequestedBy:  req.RequestedBy,
		ActorID:      actor.ActorID,
		ActorRole:    actor.Role,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"task_id":    t.ID,
		"status":     t.Status,
		"created_at": t.CreatedAt,
	})
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	var req runTaskRequest
	if !s.decodeBody(w, r, s.schemas.runTask, &req) {
		return
	}
	if req.RunMode == "" {
		req.RunMode = "standard"
	}

	res, err := s.engine.RunTask(r.Context(), engine.RunRequest{
		TaskID:         req.TaskID,
		IdempotencyKey: req.IdempotencyKey,
		RunMode:        req.RunMode,
		ActorID:        actor.ActorID,
		ActorRole:      actor.Role,
	}, taskAccess(actor, "run_task", auth.RoleRequester, auth.RoleAdmin))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	taskID := pathSegment(r.URL.Path, "/api/v1/task/status/")
	if taskID == "" {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "unknown route: "+r.URL.Path)
		return
	}

	view, err := s.engine.Status(r.Context(), taskID, taskAccess(actor, "task_status",
		auth.RoleRequester, auth.RoleReviewer, auth.RoleApprover, auth.RoleAdmin))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTaskEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	taskID := pathSegment(r.URL.Path, "/api/v1/task/events/")
	if taskID == "" {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "unknown route: "+r.URL.Path)
		return
	}

	events, err := s.engine.EventsFor(r.Context(), taskID, taskAccess(actor, "task_events",
		auth.RoleRequester, auth.RoleReviewer, auth.RoleApprover, auth.RoleAdmin))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if events == nil {
		events = []task.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"task_id": taskID,
		"items":   events,
		"count":   len(events),
	})
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if !s.requireRole(w, r, actor, "list_approvals", auth.RoleApprover, auth.RoleAdmin) {
		return
	}

	items := s.engine.ListApprovals(r.Context(),
		r.URL.Query().Get("status"),
		r.URL.Query().Get("approver_group"))

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) handleApprovalDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/approvals/")
	queueID, verb, found := strings.Cut(rest, "/")
	if !found || queueID == "" || strings.Contains(verb, "/") {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "unknown route: "+r.URL.Path)
		return
	}

	var action string
	switch verb {
	case "approve":
		action = "approve_queue_item"
	case "reject":
		action = "reject_queue_item"
	default:
		writeError(w, r, http.StatusNotFound, CodeNotFound, "unknown route: "+r.URL.Path)
		return
	}

	if !s.requireRole(w, r, actor, action, auth.RoleApprover, auth.RoleAdmin) {
		return
	}

	var req decisionRequest
	if !s.decodeBody(w, r, s.schemas.decision, &req) {
		return
	}

	decision := engine.DecisionRequest{
		QueueID:   queueID,
		ActedBy:   req.ActedBy,
		Comment:   req.Comment,
		ActorRole: actor.Role,
	}

	var (
		res engine.DecisionResult
		err error
	)
	if verb == "approve" {
		res, err = s.engine.Approve(r.Context(), decision)
	} else {
		res, err = s.engine.Reject(r.Context(), decision)
	}
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAuditSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if !s.requireRole(w, r, actor, "audit_summary", auth.RoleReviewer, auth.RoleAdmin) {
		return
	}

	writeJSON(w, http.StatusOK, s.engine.Audit(r.Context()))
}

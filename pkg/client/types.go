package client

import "encoding/json"

// errorEnvelope mirrors the server's error response shape.
type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

// CreateTaskRequest is the body for POST /api/v1/task/create.
type CreateTaskRequest struct {
	Title        string         `json:"title"`
	TemplateType string         `json:"template_type"`
	Input        map[string]any `json:"input"`
	RequestedBy  string         `json:"requested_by"`
}

// CreateTaskResponse acknowledges a created task.
type CreateTaskResponse struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// RunTaskRequest is the body for POST /api/v1/task/run.
type RunTaskRequest struct {
	TaskID         string `json:"task_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	RunMode        string `json:"run_mode,omitempty"`
}

// RunTaskResponse acknowledges an accepted run.
type RunTaskResponse struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at"`
}

// Result points at the rendered report of a finished task.
type Result struct {
	ReportPath string `json:"report_path"`
}

// StatusView is the task projection returned by the status endpoint.
// Optional fields are populated only when the status makes them
// meaningful.
type StatusView struct {
	TaskID          string  `json:"task_id"`
	Status          string  `json:"status"`
	CurrentStage    string  `json:"current_stage,omitempty"`
	LastEventAt     string  `json:"last_event_at,omitempty"`
	NextAction      string  `json:"next_action,omitempty"`
	Result          *Result `json:"result,omitempty"`
	CompletedAt     string  `json:"completed_at,omitempty"`
	FinalReason     string  `json:"final_reason,omitempty"`
	ApprovalQueueID string  `json:"approval_queue_id,omitempty"`
	ApprovalReason  string  `json:"approval_reason,omitempty"`
	RetryCount      int     `json:"retry_count,omitempty"`
	LastError       string  `json:"last_error,omitempty"`
}

// Event is one audit log entry. The server flattens type-specific
// detail fields into the top-level object; they are collected into
// Fields here.
type Event struct {
	EventID   string
	TaskID    string
	EventType string
	CreatedAt string
	Fields    map[string]any
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	e.EventID, _ = m["event_id"].(string)
	e.TaskID, _ = m["task_id"].(string)
	e.EventType, _ = m["event_type"].(string)
	e.CreatedAt, _ = m["created_at"].(string)
	delete(m, "event_id")
	delete(m, "task_id")
	delete(m, "event_type")
	delete(m, "created_at")
	if len(m) > 0 {
		e.Fields = m
	}
	return nil
}

// TaskEventsResponse wraps the event listing.
type TaskEventsResponse struct {
	TaskID string  `json:"task_id"`
	Items  []Event `json:"items"`
	Count  int     `json:"count"`
}

// ApprovalItem is one queue entry awaiting a decision.
type ApprovalItem struct {
	QueueID       string `json:"queue_id"`
	TaskID        string `json:"task_id"`
	RequestID     string `json:"request_id"`
	ReasonCode    string `json:"reason_code"`
	ReasonMessage string `json:"reason_message"`
	ApproverGroup string `json:"approver_group"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	ExpiresAt     string `json:"expires_at,omitempty"`
	ResolvedAt    string `json:"resolved_at,omitempty"`
}

// ApprovalListResponse wraps the queue listing.
type ApprovalListResponse struct {
	Items []ApprovalItem `json:"items"`
	Count int            `json:"count"`
}

// DecisionRequest is the body for approve and reject calls.
type DecisionRequest struct {
	ActedBy string `json:"acted_by"`
	Comment string `json:"comment,omitempty"`
}

// DecisionResponse acknowledges a resolved queue item.
type DecisionResponse struct {
	QueueID    string `json:"queue_id"`
	Status     string `json:"status"`
	TaskStatus string `json:"task_status"`
}

// AuditSummary is the aggregate counters view.
type AuditSummary struct {
	TotalEvents         int `json:"total_events"`
	BlockedPolicyEvents int `json:"blocked_policy_events"`
	PolicyBypassEvents  int `json:"policy_bypass_events"`
	ApprovalsPending    int `json:"approvals_pending"`
	ApprovalsResolved   int `json:"approvals_resolved"`
}

// Package task defines the domain entities of the work-delegation
// orchestrator: tasks, their lifecycle states, audit events, approval
// items and the identifier / timestamp conventions shared by every
// other package.
package task

import "time"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusReady              Status = "READY"
	StatusRunning            Status = "RUNNING"
	StatusFailedRetryable    Status = "FAILED_RETRYABLE"
	StatusNeedsHumanApproval Status = "NEEDS_HUMAN_APPROVAL"
	StatusDone               Status = "DONE"
)

// Stage is a named position within a single RUNNING pipeline pass.
type Stage string

const (
	StagePlanner  Stage = "planner"
	StageExecutor Stage = "executor"
	StageReviewer Stage = "reviewer"
	StageReporter Stage = "reporter"
)

// Next-action hints surfaced to callers on the status view.
const (
	ActionRunTask           = "run_task"
	ActionWaitForCompletion = "wait_for_completion"
	ActionApproveOrReject   = "approve_or_reject"
	ActionRetrying          = "retrying"
	ActionNone              = "none"
)

// Final reasons recorded when a task is closed without an artifact.
const (
	FinalRejectedByHuman = "rejected_by_human"
	FinalApprovalExpired = "approval_expired"
)

// Result is the output of a successfully completed task.
type Result struct {
	ReportPath string `json:"report_path"`
}

// Task is the unit of delegated work.
type Task struct {
	ID              string         `json:"task_id"`
	Title           string         `json:"title"`
	TemplateType    string         `json:"template_type"`
	Input           map[string]any `json:"input"`
	InputHash       string         `json:"input_hash,omitempty"`
	RequestedBy     string         `json:"requested_by"`
	Status          Status         `json:"status"`
	CurrentStage    Stage          `json:"current_stage,omitempty"`
	NextAction      string         `json:"next_action,omitempty"`
	RetryCount      int            `json:"retry_count"`
	ApprovedReasons []string       `json:"approved_reasons,omitempty"`
	ApprovalQueueID string         `json:"approval_queue_id,omitempty"`
	ApprovalReason  string         `json:"approval_reason,omitempty"`
	LastError       string         `json:"last_error,omitempty"`
	Result          *Result        `json:"result,omitempty"`
	FinalReason     string         `json:"final_reason,omitempty"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
	StartedAt       string         `json:"started_at,omitempty"`
	CompletedAt     string         `json:"completed_at,omitempty"`
}

// Clone returns a deep copy safe to use outside the store lock.
func (t *Task) Clone() *Task {
	cp := *t
	cp.Input = cloneMap(t.Input)
	if t.ApprovedReasons != nil {
		cp.ApprovedReasons = append([]string(nil), t.ApprovedReasons...)
	}
	if t.Result != nil {
		r := *t.Result
		cp.Result = &r
	}
	return &cp
}

// HasApprovedReason reports whether code was already cleared by a human.
func (t *Task) HasApprovedReason(code string) bool {
	for _, r := range t.ApprovedReasons {
		if r == code {
			return true
		}
	}
	return false
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			cp[k] = cloneMap(val)
		case []any:
			s := make([]any, len(val))
			copy(s, val)
			cp[k] = s
		default:
			cp[k] = v
		}
	}
	return cp
}

// transitions holds the only legal status edges. READY is initial,
// DONE is terminal.
var transitions = map[Status][]Status{
	StatusReady:              {StatusRunning},
	StatusRunning:            {StatusFailedRetryable, StatusNeedsHumanApproval, StatusDone},
	StatusFailedRetryable:    {StatusRunning},
	StatusNeedsHumanApproval: {StatusRunning, StatusDone},
	StatusDone:               {},
}

// CanTransition reports whether from -> to is a legal status edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidPath reports whether the status sequence, starting at READY,
// follows only legal edges.
func ValidPath(seq []Status) bool {
	cur := StatusReady
	for _, next := range seq {
		if !CanTransition(cur, next) {
			return false
		}
		cur = next
	}
	return true
}

// FormatTimestamp renders t in the normalized textual form used across
// the system: UTC, RFC 3339, second precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// ParseTimestamp parses a timestamp produced by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

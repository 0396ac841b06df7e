package task

// ApprovalStatus is the lifecycle state of an approval queue item.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
	ApprovalExpired  ApprovalStatus = "EXPIRED"
)

// Decision kinds recorded as approval actions.
const (
	DecisionApprove = "APPROVE"
	DecisionReject  = "REJECT"
)

// DefaultApproverGroup receives escalations unless overridden.
const DefaultApproverGroup = "ops_team"

// Reason codes attached to approval items by the pipeline.
const (
	ReasonExternalSend   = "external_send_requested"
	ReasonRetryExhausted = "retry_exhausted"
)

// ApprovalItem is a pending human decision attached to a task.
type ApprovalItem struct {
	QueueID       string         `json:"queue_id"`
	TaskID        string         `json:"task_id"`
	RequestID     string         `json:"request_id"`
	ReasonCode    string         `json:"reason_code"`
	ReasonMessage string         `json:"reason_message"`
	RequestedBy   string         `json:"requested_by"`
	ApproverGroup string         `json:"approver_group"`
	Status        ApprovalStatus `json:"status"`
	CreatedAt     string         `json:"created_at"`
	ExpiresAt     string         `json:"expires_at,omitempty"`
	ResolvedAt    string         `json:"resolved_at,omitempty"`
}

// Resolved reports whether the item left the PENDING state.
func (a *ApprovalItem) Resolved() bool {
	return a.Status != ApprovalPending
}

// ApprovalAction is the immutable record of one approve/reject decision.
type ApprovalAction struct {
	ActionID  string `json:"action_id"`
	QueueID   string `json:"queue_id"`
	TaskID    string `json:"task_id"`
	Action    string `json:"action"`
	ActedBy   string `json:"acted_by"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt string `json:"created_at"`
	// Seq orders same-second actions across restarts, like Event.Seq.
	Seq uint64 `json:"-"`
}

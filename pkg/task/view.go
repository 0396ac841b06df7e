package task

// StatusView is the API projection of a task. Optional fields appear
// only when the status makes them meaningful.
type StatusView struct {
	TaskID          string  `json:"task_id"`
	Status          Status  `json:"status"`
	CurrentStage    Stage   `json:"current_stage,omitempty"`
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

// View builds the status projection of t.
func (t *Task) View() StatusView {
	v := StatusView{
		TaskID:       t.ID,
		Status:       t.Status,
		CurrentStage: t.CurrentStage,
		LastEventAt:  t.UpdatedAt,
		NextAction:   t.NextAction,
	}
	switch t.Status {
	case StatusDone:
		if t.Result != nil {
			r := *t.Result
			v.Result = &r
		}
		v.CompletedAt = t.CompletedAt
		v.FinalReason = t.FinalReason
	case StatusNeedsHumanApproval:
		v.ApprovalQueueID = t.ApprovalQueueID
		v.ApprovalReason = t.ApprovalReason
	}
	if t.RetryCount > 0 {
		v.RetryCount = t.RetryCount
		v.LastError = t.LastError
	}
	return v
}

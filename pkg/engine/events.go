package engine

import (
	"context"
	"fmt"

	"github.com/redsunjin/NestClaw/pkg/task"
)

// appendEventLocked assigns an id, timestamp and insertion sequence,
// appends to the log and persists. Caller holds e.mu.
func (e *Engine) appendEventLocked(ctx context.Context, taskID, eventType string, fields map[string]any) error {
	e.seq++
	ev := task.Event{
		ID:        task.NewEventID(),
		TaskID:    taskID,
		Type:      eventType,
		CreatedAt: task.FormatTimestamp(e.clock()),
		Fields:    fields,
		Seq:       e.seq,
	}
	e.events = append(e.events, ev)
	if err := e.store.SaveEvent(ctx, ev); err != nil {
		return fmt.Errorf("persist event: %w", err)
	}
	return nil
}

// statusChange bundles the optional task fields a transition may set.
// Empty strings leave the current value untouched. A reason code both
// lands on the task as approval_reason and rides the STATUS_CHANGED
// event.
type statusChange struct {
	reasonCode      string
	lastError       string
	nextAction      string
	approvalQueueID string
	finalReason     string
}

// setStatusLocked applies a status transition, stamps updated_at,
// persists the task and logs STATUS_CHANGED. Caller holds e.mu.
func (e *Engine) setStatusLocked(ctx context.Context, t *task.Task, to task.Status, change statusChange) error {
	from := t.Status
	t.Status = to
	t.UpdatedAt = task.FormatTimestamp(e.clock())
	if change.reasonCode != "" {
		t.ApprovalReason = change.reasonCode
	}
	if change.lastError != "" {
		t.LastError = change.lastError
	}
	if change.nextAction != "" {
		t.NextAction = change.nextAction
	}
	if change.approvalQueueID != "" {
		t.ApprovalQueueID = change.approvalQueueID
	}
	if change.finalReason != "" {
		t.FinalReason = change.finalReason
	}
	if err := e.store.SaveTask(ctx, t); err != nil {
		return fmt.Errorf("persist task: %w", err)
	}
	fields := map[string]any{
		"from_status": string(from),
		"to_status":   string(to),
	}
	if change.reasonCode != "" {
		fields["reason_code"] = change.reasonCode
	}
	return e.appendEventLocked(ctx, t.ID, task.EventStatusChanged, fields)
}

// setStageLocked moves the task to a pipeline stage and logs
// STAGE_CHANGED. Caller holds e.mu.
func (e *Engine) setStageLocked(ctx context.Context, t *task.Task, stage task.Stage) error {
	t.CurrentStage = stage
	t.UpdatedAt = task.FormatTimestamp(e.clock())
	if err := e.store.SaveTask(ctx, t); err != nil {
		return fmt.Errorf("persist task: %w", err)
	}
	return e.appendEventLocked(ctx, t.ID, task.EventStageChanged, map[string]any{
		"stage": string(stage),
	})
}

// createApprovalLocked opens a PENDING queue item for the task and logs
// APPROVAL_REQUESTED. Caller holds e.mu.
func (e *Engine) createApprovalLocked(ctx context.Context, t *task.Task, reasonCode string) (string, error) {
	now := e.clock()
	item := &task.ApprovalItem{
		QueueID:       task.NewQueueID(),
		TaskID:        t.ID,
		RequestID:     task.NewRequestID(),
		ReasonCode:    reasonCode,
		ReasonMessage: fmt.Sprintf("approval required: %s", reasonCode),
		RequestedBy:   t.RequestedBy,
		ApproverGroup: task.DefaultApproverGroup,
		Status:        task.ApprovalPending,
		CreatedAt:     task.FormatTimestamp(now),
	}
	if e.approvalTTL > 0 {
		item.ExpiresAt = task.FormatTimestamp(now.Add(e.approvalTTL))
	}
	e.approvals[item.QueueID] = item
	e.order = append(e.order, item.QueueID)
	if err := e.store.SaveApproval(ctx, item); err != nil {
		return "", fmt.Errorf("persist approval: %w", err)
	}
	if err := e.appendEventLocked(ctx, t.ID, task.EventApprovalRequested, map[string]any{
		"queue_id":    item.QueueID,
		"reason_code": reasonCode,
	}); err != nil {
		return "", err
	}
	return item.QueueID, nil
}

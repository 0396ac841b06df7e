package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/redsunjin/NestClaw/pkg/task"
)

// ListApprovals returns queue items in creation order, optionally
// filtered by status and approver group.
func (e *Engine) ListApprovals(ctx context.Context, status, group string) []task.ApprovalItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	items := make([]task.ApprovalItem, 0, len(e.order))
	for _, id := range e.order {
		item := e.approvals[id]
		if status != "" && string(item.Status) != status {
			continue
		}
		if group != "" && item.ApproverGroup != group {
			continue
		}
		items = append(items, *item)
	}
	return items
}

// DecisionRequest carries a human decision on a queue item.
type DecisionRequest struct {
	QueueID   string
	ActedBy   string
	Comment   string
	ActorRole string
}

// DecisionResult acknowledges the resolved item and the task it moved.
type DecisionResult struct {
	QueueID    string              `json:"queue_id"`
	Status     task.ApprovalStatus `json:"status"`
	TaskStatus task.Status         `json:"task_status"`
}

// Approve resolves a PENDING item as APPROVED, whitelists its reason
// code on the task and resumes the pipeline.
func (e *Engine) Approve(ctx context.Context, req DecisionRequest) (DecisionResult, error) {
	e.mu.Lock()
	item, t, err := e.resolveLocked(ctx, req, task.ApprovalApproved, task.DecisionApprove)
	if err != nil {
		e.mu.Unlock()
		return DecisionResult{}, err
	}
	if !t.HasApprovedReason(item.ReasonCode) {
		t.ApprovedReasons = append(t.ApprovedReasons, item.ReasonCode)
		sort.Strings(t.ApprovedReasons)
	}
	if err := e.setStatusLocked(ctx, t, task.StatusRunning, statusChange{
		nextAction: task.ActionWaitForCompletion,
	}); err != nil {
		e.mu.Unlock()
		return DecisionResult{}, err
	}
	if err := e.appendEventLocked(ctx, t.ID, task.EventHumanApproved, map[string]any{
		"queue_id":   item.QueueID,
		"acted_by":   req.ActedBy,
		"actor_role": req.ActorRole,
	}); err != nil {
		e.mu.Unlock()
		return DecisionResult{}, err
	}
	taskID := t.ID
	e.mu.Unlock()

	e.metrics.ApprovalResolved(ctx, task.DecisionApprove)
	e.logger.Info("approval granted",
		"queue_id", item.QueueID, "task_id", taskID, "acted_by", req.ActedBy)
	e.dispatch(taskID)
	return DecisionResult{QueueID: item.QueueID, Status: task.ApprovalApproved, TaskStatus: task.StatusRunning}, nil
}

// Reject resolves a PENDING item as REJECTED and finalizes the task as
// DONE with final_reason rejected_by_human.
func (e *Engine) Reject(ctx context.Context, req DecisionRequest) (DecisionResult, error) {
	e.mu.Lock()
	item, t, err := e.resolveLocked(ctx, req, task.ApprovalRejected, task.DecisionReject)
	if err != nil {
		e.mu.Unlock()
		return DecisionResult{}, err
	}
	t.CompletedAt = task.FormatTimestamp(e.clock())
	if err := e.setStatusLocked(ctx, t, task.StatusDone, statusChange{
		nextAction:  task.ActionNone,
		finalReason: task.FinalRejectedByHuman,
	}); err != nil {
		e.mu.Unlock()
		return DecisionResult{}, err
	}
	if err := e.appendEventLocked(ctx, t.ID, task.EventHumanRejected, map[string]any{
		"queue_id":   item.QueueID,
		"acted_by":   req.ActedBy,
		"actor_role": req.ActorRole,
	}); err != nil {
		e.mu.Unlock()
		return DecisionResult{}, err
	}
	taskID := t.ID
	e.mu.Unlock()

	e.metrics.ApprovalResolved(ctx, task.DecisionReject)
	e.metrics.TaskFinished(ctx, task.FinalRejectedByHuman)
	e.logger.Info("approval rejected",
		"queue_id", item.QueueID, "task_id", taskID, "acted_by", req.ActedBy)
	return DecisionResult{QueueID: item.QueueID, Status: task.ApprovalRejected, TaskStatus: task.StatusDone}, nil
}

// resolveLocked flips a PENDING item to its resolved status, records
// the decision action and returns the item with its task. Caller holds
// e.mu.
func (e *Engine) resolveLocked(ctx context.Context, req DecisionRequest, to task.ApprovalStatus, decision string) (*task.ApprovalItem, *task.Task, error) {
	item, ok := e.approvals[req.QueueID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrApprovalNotFound, req.QueueID)
	}
	if item.Status != task.ApprovalPending {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidApprovalState, item.Status)
	}
	t, ok := e.tasks[item.TaskID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrTaskNotFound, item.TaskID)
	}
	item.Status = to
	item.ResolvedAt = task.FormatTimestamp(e.clock())
	if err := e.store.SaveApproval(ctx, item); err != nil {
		return nil, nil, fmt.Errorf("persist approval: %w", err)
	}
	e.seq++
	action := task.ApprovalAction{
		ActionID:  task.NewActionID(),
		QueueID:   item.QueueID,
		TaskID:    item.TaskID,
		Action:    decision,
		ActedBy:   req.ActedBy,
		Comment:   req.Comment,
		CreatedAt: task.FormatTimestamp(e.clock()),
		Seq:       e.seq,
	}
	e.actions = append(e.actions, action)
	if err := e.store.SaveApprovalAction(ctx, action); err != nil {
		return nil, nil, fmt.Errorf("persist approval action: %w", err)
	}
	return item, t, nil
}

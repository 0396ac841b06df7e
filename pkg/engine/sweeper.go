package engine

import (
	"context"
	"time"

	"github.com/redsunjin/NestClaw/pkg/task"
)

// SweepExpired expires every PENDING approval item whose expires_at has
// passed. The owning task, when still waiting on that item, is closed
// as DONE with final_reason approval_expired. Returns the number of
// items expired. A zero TTL disables the sweep entirely.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	if e.approvalTTL <= 0 {
		return 0, nil
	}
	now := e.clock()

	e.mu.Lock()
	defer e.mu.Unlock()
	expired := 0
	for _, id := range e.order {
		item := e.approvals[id]
		if item.Status != task.ApprovalPending || item.ExpiresAt == "" {
			continue
		}
		deadline, err := task.ParseTimestamp(item.ExpiresAt)
		if err != nil {
			e.logger.Warn("unreadable expires_at on approval item", "queue_id", id, "error", err)
			continue
		}
		if now.Before(deadline) {
			continue
		}

		item.Status = task.ApprovalExpired
		item.ResolvedAt = task.FormatTimestamp(now)
		if err := e.store.SaveApproval(ctx, item); err != nil {
			return expired, err
		}
		if err := e.appendEventLocked(ctx, item.TaskID, task.EventApprovalExpired, map[string]any{
			"queue_id":    item.QueueID,
			"reason_code": item.ReasonCode,
		}); err != nil {
			return expired, err
		}

		t, ok := e.tasks[item.TaskID]
		if ok && t.Status == task.StatusNeedsHumanApproval && t.ApprovalQueueID == item.QueueID {
			t.CompletedAt = task.FormatTimestamp(now)
			if err := e.setStatusLocked(ctx, t, task.StatusDone, statusChange{
				nextAction:  task.ActionNone,
				finalReason: task.FinalApprovalExpired,
			}); err != nil {
				return expired, err
			}
			e.metrics.TaskFinished(ctx, task.FinalApprovalExpired)
		}
		expired++
		e.logger.Info("approval item expired", "queue_id", item.QueueID, "task_id", item.TaskID)
	}
	return expired, nil
}

// StartExpirySweeper runs SweepExpired on an interval derived from the
// TTL until ctx is canceled. It returns immediately when no TTL is
// configured.
func (e *Engine) StartExpirySweeper(ctx context.Context) {
	if e.approvalTTL <= 0 {
		return
	}
	interval := e.approvalTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := e.SweepExpired(ctx); err != nil {
					e.logger.Error("expiry sweep failed", "error", err)
				}
			}
		}
	}()
}

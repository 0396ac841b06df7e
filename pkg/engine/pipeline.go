package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/redsunjin/NestClaw/pkg/task"
	"github.com/redsunjin/NestClaw/pkg/template"
)

// dispatch launches the pipeline worker for a task.
func (e *Engine) dispatch(taskID string) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runPipeline(taskID)
	}()
}

// Drain blocks until every in-flight pipeline worker finishes or ctx
// expires.
func (e *Engine) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runPipeline drives executeOnce until the task reaches a terminal or
// waiting state. A failed pass is retried while the budget lasts, then
// escalated to the approval queue with reason retry_exhausted.
func (e *Engine) runPipeline(taskID string) {
	ctx := context.Background()
	for {
		passErr := e.tracedPass(ctx, taskID)
		if passErr == nil {
			return
		}

		e.mu.Lock()
		t, ok := e.tasks[taskID]
		if !ok {
			e.mu.Unlock()
			return
		}
		if t.RetryCount < e.maxRetry {
			t.RetryCount++
			if err := e.setStatusLocked(ctx, t, task.StatusFailedRetryable, statusChange{
				lastError:  passErr.Error(),
				nextAction: task.ActionRetrying,
			}); err != nil {
				e.logger.Warn("retry bookkeeping failed", "task_id", taskID, "error", err)
			}
			if err := e.appendEventLocked(ctx, taskID, task.EventRetryStarted, map[string]any{
				"retry_count": t.RetryCount,
			}); err != nil {
				e.logger.Warn("retry bookkeeping failed", "task_id", taskID, "error", err)
			}
			if err := e.setStatusLocked(ctx, t, task.StatusRunning, statusChange{
				nextAction: task.ActionWaitForCompletion,
			}); err != nil {
				e.logger.Warn("retry bookkeeping failed", "task_id", taskID, "error", err)
			}
			retry := t.RetryCount
			e.mu.Unlock()
			e.metrics.RetryStarted(ctx)
			e.logger.Warn("pipeline pass failed, retrying",
				"task_id", taskID, "retry_count", retry, "error", passErr)
			continue
		}

		queueID, err := e.createApprovalLocked(ctx, t, task.ReasonRetryExhausted)
		if err != nil {
			e.logger.Error("escalation failed", "task_id", taskID, "error", err)
			e.mu.Unlock()
			return
		}
		if err := e.setStatusLocked(ctx, t, task.StatusNeedsHumanApproval, statusChange{
			reasonCode:      task.ReasonRetryExhausted,
			lastError:       passErr.Error(),
			nextAction:      task.ActionApproveOrReject,
			approvalQueueID: queueID,
		}); err != nil {
			e.logger.Error("escalation failed", "task_id", taskID, "error", err)
		}
		e.mu.Unlock()
		e.logger.Warn("retry budget exhausted, escalated",
			"task_id", taskID, "queue_id", queueID, "error", passErr)
		return
	}
}

// tracedPass wraps one pipeline pass in a span.
func (e *Engine) tracedPass(ctx context.Context, taskID string) error {
	ctx, span := e.tracer.Start(ctx, "pipeline.pass",
		trace.WithAttributes(attribute.String("task_id", taskID)))
	defer span.End()
	err := e.executeOnce(ctx, taskID)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// executeOnce runs one pipeline pass. It returns nil when the pass
// ended the run (DONE, blocked on approval, or the task vanished) and
// an error when the pass failed and may be retried. The store lock is
// held per stage and never across template rendering or report output.
func (e *Engine) executeOnce(ctx context.Context, taskID string) error {
	e.mu.Lock()
	t, ok := e.tasks[taskID]
	if !ok || t.Status != task.StatusRunning {
		e.mu.Unlock()
		return nil
	}
	if err := e.setStageLocked(ctx, t, task.StagePlanner); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	e.mu.Lock()
	t, ok = e.tasks[taskID]
	if !ok || t.Status != task.StatusRunning {
		e.mu.Unlock()
		return nil
	}
	if err := e.setStageLocked(ctx, t, task.StageExecutor); err != nil {
		e.mu.Unlock()
		return err
	}
	if reason, blocked := e.detector.Detect(t.Input, t.ApprovedReasons); blocked {
		if err := e.appendEventLocked(ctx, taskID, task.EventBlockedPolicy, map[string]any{
			"reason_code": reason,
		}); err != nil {
			e.mu.Unlock()
			return err
		}
		queueID, err := e.createApprovalLocked(ctx, t, reason)
		if err != nil {
			e.mu.Unlock()
			return err
		}
		if err := e.setStatusLocked(ctx, t, task.StatusNeedsHumanApproval, statusChange{
			reasonCode:      reason,
			nextAction:      task.ActionApproveOrReject,
			approvalQueueID: queueID,
		}); err != nil {
			e.mu.Unlock()
			return err
		}
		e.mu.Unlock()
		e.metrics.PolicyBlocked(ctx, reason)
		e.logger.Info("policy gate blocked task",
			"task_id", taskID, "reason_code", reason, "queue_id", queueID)
		return nil
	}
	templateType := t.TemplateType
	input := t.Clone().Input
	e.mu.Unlock()

	tpl, ok := e.templates.Get(templateType)
	if !ok {
		return fmt.Errorf("unsupported template_type at runtime: %s", templateType)
	}
	artifact, err := renderArtifact(tpl, input)
	if err != nil {
		return err
	}
	reportPath, err := e.writeReport(taskID, artifact)
	if err != nil {
		return err
	}

	e.mu.Lock()
	t, ok = e.tasks[taskID]
	if !ok || t.Status != task.StatusRunning {
		e.mu.Unlock()
		return nil
	}
	if err := e.setStageLocked(ctx, t, task.StageReviewer); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := tpl.Review(artifact); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := e.setStageLocked(ctx, t, task.StageReporter); err != nil {
		e.mu.Unlock()
		return err
	}
	t.Result = &task.Result{ReportPath: reportPath}
	t.CompletedAt = task.FormatTimestamp(e.clock())
	if err := e.setStatusLocked(ctx, t, task.StatusDone, statusChange{
		nextAction: task.ActionNone,
	}); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()
	e.metrics.TaskFinished(ctx, "completed")
	e.logger.Info("task completed", "task_id", taskID, "report", reportPath)
	return nil
}

// renderArtifact shields the pipeline from template panics so they
// surface as retryable failures.
func renderArtifact(tpl template.Template, input map[string]any) (artifact string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("template panic: %v", r)
		}
	}()
	return tpl.Render(input)
}

// writeReport places the artifact at <root>/<task_id>/report.md.
func (e *Engine) writeReport(taskID, content string) (string, error) {
	dir := filepath.Join(e.reportsRoot, taskID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, "report.md")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

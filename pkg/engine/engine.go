// Package engine owns the orchestrator state: the task table, the
// append-only event log, the approval queue and the run-idempotency
// records, all guarded by one exclusion lock and mirrored synchronously
// to a persistence backend. HTTP handlers and pipeline workers never
// touch state except through it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/redsunjin/NestClaw/pkg/policy"
	"github.com/redsunjin/NestClaw/pkg/store"
	"github.com/redsunjin/NestClaw/pkg/task"
	"github.com/redsunjin/NestClaw/pkg/template"
)

// DefaultMaxRetry is the automatic retry budget per task.
const DefaultMaxRetry = 1

// DefaultReportsRoot is where report artifacts land.
const DefaultReportsRoot = "reports"

// Engine is the owned state subsystem. All exported methods are safe
// for concurrent use.
type Engine struct {
	mu          sync.Mutex
	tasks       map[string]*task.Task
	events      []task.Event
	approvals   map[string]*task.ApprovalItem
	order       []string // approval queue ids, insertion order
	actions     []task.ApprovalAction
	idempotency map[string]string
	seq         uint64 // last insertion sequence handed out

	store       store.Store
	detector    *policy.Detector
	templates   *template.Registry
	reportsRoot string
	maxRetry    int
	approvalTTL time.Duration
	clock       func() time.Time
	logger      *slog.Logger
	metrics     Metrics
	tracer      trace.Tracer
	wg          sync.WaitGroup
}

// Option configures the engine.
type Option func(*Engine)

// WithClock overrides the time source. Useful in tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithMaxRetry overrides the automatic retry budget.
func WithMaxRetry(n int) Option {
	return func(e *Engine) { e.maxRetry = n }
}

// WithReportsRoot overrides the artifact root directory.
func WithReportsRoot(dir string) Option {
	return func(e *Engine) { e.reportsRoot = dir }
}

// WithDetector replaces the policy detector.
func WithDetector(d *policy.Detector) Option {
	return func(e *Engine) { e.detector = d }
}

// WithTemplates replaces the template registry.
func WithTemplates(r *template.Registry) Option {
	return func(e *Engine) { e.templates = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithApprovalTTL enables the expiry sweep: every approval item created
// afterwards carries expires_at = created_at + ttl. Zero disables it.
func WithApprovalTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.approvalTTL = ttl }
}

// WithMetrics attaches counters for the pipeline's notable moments.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer records one span per pipeline pass on the given tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// New loads persisted state from st and returns a ready engine.
func New(ctx context.Context, st store.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:       st,
		detector:    policy.Default(),
		templates:   template.DefaultRegistry(),
		reportsRoot: DefaultReportsRoot,
		maxRetry:    DefaultMaxRetry,
		clock:       time.Now,
		logger:      slog.Default(),
		metrics:     nopMetrics{},
		tracer:      noop.NewTracerProvider().Tracer("nestclaw.engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	snap, err := st.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	e.tasks = snap.Tasks
	e.events = snap.Events
	e.approvals = snap.Approvals
	e.actions = snap.ApprovalActions
	e.idempotency = snap.Idempotency
	for _, ev := range e.events {
		if ev.Seq > e.seq {
			e.seq = ev.Seq
		}
	}
	for _, a := range e.actions {
		if a.Seq > e.seq {
			e.seq = a.Seq
		}
	}

	e.order = make([]string, 0, len(e.approvals))
	for id := range e.approvals {
		e.order = append(e.order, id)
	}
	sort.Slice(e.order, func(i, j int) bool {
		a, b := e.approvals[e.order[i]], e.approvals[e.order[j]]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.QueueID < b.QueueID
	})

	e.logger.Info("engine state loaded",
		"tasks", len(e.tasks),
		"events", len(e.events),
		"approvals", len(e.approvals))
	return e, nil
}

// Templates exposes the registry so the HTTP layer can validate create
// requests before touching engine state.
func (e *Engine) Templates() *template.Registry {
	return e.templates
}

// CreateRequest carries a validated task creation.
type CreateRequest struct {
	Title        string
	TemplateType string
	Input        map[string]any
	RequestedBy  string
	ActorID      string
	ActorRole    string
}

// CreateTask registers a new READY task and returns a copy of it.
func (e *Engine) CreateTask(ctx context.Context, req CreateRequest) (*task.Task, error) {
	hash, err := task.InputHash(req.Input)
	if err != nil {
		return nil, fmt.Errorf("hash input: %w", err)
	}
	now := task.FormatTimestamp(e.clock())
	t := &task.Task{
		ID:           task.NewTaskID(),
		Title:        req.Title,
		TemplateType: req.TemplateType,
		Input:        req.Input,
		InputHash:    hash,
		RequestedBy:  req.RequestedBy,
		Status:       task.StatusReady,
		NextAction:   task.ActionRunTask,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks[t.ID] = t
	if err := e.store.SaveTask(ctx, t); err != nil {
		delete(e.tasks, t.ID)
		return nil, fmt.Errorf("persist task: %w", err)
	}
	if err := e.appendEventLocked(ctx, t.ID, task.EventTaskCreated, map[string]any{
		"actor_id":     req.ActorID,
		"actor_role":   req.ActorRole,
		"requested_by": req.RequestedBy,
	}); err != nil {
		return nil, err
	}
	e.metrics.TaskCreated(ctx)
	e.logger.Info("task created", "task_id", t.ID, "template", t.TemplateType, "requested_by", t.RequestedBy)
	return t.Clone(), nil
}

// RunRequest asks for a pipeline launch.
type RunRequest struct {
	TaskID         string
	IdempotencyKey string
	RunMode        string
	ActorID        string
	ActorRole      string
}

// RunResult reports the task state acknowledged to the caller.
type RunResult struct {
	TaskID    string      `json:"task_id"`
	Status    task.Status `json:"status"`
	StartedAt string      `json:"started_at,omitempty"`
}

// RunTask transitions a READY task to RUNNING and dispatches its
// pipeline worker. authorize, when non-nil, runs under the lock with
// the live task; a non-nil return aborts before any mutation. A known
// (task_id, idempotency_key) pair short-circuits to the current state
// without a new dispatch.
func (e *Engine) RunTask(ctx context.Context, req RunRequest, authorize func(*task.Task) error) (RunResult, error) {
	e.mu.Lock()
	t, ok := e.tasks[req.TaskID]
	if !ok {
		e.mu.Unlock()
		return RunResult{}, fmt.Errorf("%w: %s", ErrTaskNotFound, req.TaskID)
	}
	if authorize != nil {
		if err := authorize(t); err != nil {
			e.mu.Unlock()
			return RunResult{}, err
		}
	}

	if req.IdempotencyKey != "" {
		if _, seen := e.idempotency[store.IdemKey(req.TaskID, req.IdempotencyKey)]; seen {
			res := RunResult{TaskID: t.ID, Status: t.Status, StartedAt: t.StartedAt}
			e.mu.Unlock()
			return res, nil
		}
	}

	if t.Status != task.StatusReady {
		err := fmt.Errorf("%w: %s", ErrInvalidTaskState, t.Status)
		e.mu.Unlock()
		return RunResult{}, err
	}

	prevStarted := t.StartedAt
	t.StartedAt = task.FormatTimestamp(e.clock())
	if err := e.setStatusLocked(ctx, t, task.StatusRunning, statusChange{nextAction: task.ActionWaitForCompletion}); err != nil {
		e.revertRunLocked(ctx, t, prevStarted, req.IdempotencyKey)
		e.mu.Unlock()
		return RunResult{}, err
	}
	if req.IdempotencyKey != "" {
		e.idempotency[store.IdemKey(req.TaskID, req.IdempotencyKey)] = req.TaskID
		if err := e.store.SaveIdempotency(ctx, req.TaskID, req.IdempotencyKey, req.TaskID); err != nil {
			e.revertRunLocked(ctx, t, prevStarted, req.IdempotencyKey)
			e.mu.Unlock()
			return RunResult{}, fmt.Errorf("persist idempotency: %w", err)
		}
	}
	if err := e.appendEventLocked(ctx, t.ID, task.EventRunRequested, map[string]any{
		"actor_id":   req.ActorID,
		"actor_role": req.ActorRole,
	}); err != nil {
		e.revertRunLocked(ctx, t, prevStarted, req.IdempotencyKey)
		e.mu.Unlock()
		return RunResult{}, err
	}
	res := RunResult{TaskID: t.ID, Status: task.StatusRunning, StartedAt: t.StartedAt}
	e.mu.Unlock()

	e.dispatch(req.TaskID)
	return res, nil
}

// revertRunLocked puts a task back to READY after a persist failure
// mid-launch. Without it the task would report RUNNING with no worker
// dispatched and no way to be re-run. Caller holds e.mu.
func (e *Engine) revertRunLocked(ctx context.Context, t *task.Task, startedAt, idemKey string) {
	t.Status = task.StatusReady
	t.NextAction = task.ActionRunTask
	t.StartedAt = startedAt
	t.UpdatedAt = task.FormatTimestamp(e.clock())
	if idemKey != "" {
		delete(e.idempotency, store.IdemKey(t.ID, idemKey))
	}
	if err := e.store.SaveTask(ctx, t); err != nil {
		e.logger.Error("run rollback persist failed", "task_id", t.ID, "error", err)
	}
}

// Status returns the task view. authorize, when non-nil, runs under the
// lock with the live task.
func (e *Engine) Status(ctx context.Context, taskID string, authorize func(*task.Task) error) (task.StatusView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[taskID]
	if !ok {
		return task.StatusView{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if authorize != nil {
		if err := authorize(t); err != nil {
			return task.StatusView{}, err
		}
	}
	return t.View(), nil
}

// EventsFor returns the task's events in creation order.
func (e *Engine) EventsFor(ctx context.Context, taskID string, authorize func(*task.Task) error) ([]task.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if authorize != nil {
		if err := authorize(t); err != nil {
			return nil, err
		}
	}
	var items []task.Event
	for _, ev := range e.events {
		if ev.TaskID == taskID {
			items = append(items, ev)
		}
	}
	return items, nil
}

// AuditSummary is the aggregate view over the event log and queue.
type AuditSummary struct {
	TotalEvents         int `json:"total_events"`
	BlockedPolicyEvents int `json:"blocked_policy_events"`
	PolicyBypassEvents  int `json:"policy_bypass_events"`
	ApprovalsPending    int `json:"approvals_pending"`
	ApprovalsResolved   int `json:"approvals_resolved"`
}

// Audit computes the summary counters. policy_bypass_events is reserved
// and stays zero.
func (e *Engine) Audit(ctx context.Context) AuditSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := AuditSummary{TotalEvents: len(e.events)}
	for _, ev := range e.events {
		if ev.Type == task.EventBlockedPolicy {
			s.BlockedPolicyEvents++
		}
	}
	for _, item := range e.approvals {
		switch item.Status {
		case task.ApprovalPending:
			s.ApprovalsPending++
		case task.ApprovalApproved, task.ApprovalRejected:
			s.ApprovalsResolved++
		}
	}
	return s
}

// Package store persists orchestrator state. All entities survive a
// process restart; LoadState reconstructs the full in-memory picture on
// startup. Two durable backends share one contract: an embedded SQLite
// file for single-box use and PostgreSQL for networked deployments. A
// volatile in-memory backend exists for tests.
package store

import (
	"context"

	"github.com/redsunjin/NestClaw/pkg/task"
)

// Store is the persistence capability the engine is parameterized by.
// Callers serialize access; backends do not need to provide isolation
// beyond statement atomicity.
type Store interface {
	// LoadState reads everything back. Events and approval actions are
	// returned in insertion order (ascending Seq).
	LoadState(ctx context.Context) (*Snapshot, error)
	// SaveTask upserts by task_id.
	SaveTask(ctx context.Context, t *task.Task) error
	// SaveEvent inserts by event_id. Overwriting an existing id with
	// identical content is permitted.
	SaveEvent(ctx context.Context, e task.Event) error
	// SaveApproval upserts by queue_id.
	SaveApproval(ctx context.Context, a *task.ApprovalItem) error
	// SaveApprovalAction inserts by action_id.
	SaveApprovalAction(ctx context.Context, a task.ApprovalAction) error
	// SaveIdempotency upserts the (task_id, idem_key) pair.
	SaveIdempotency(ctx context.Context, taskID, key, ref string) error
	Close() error
}

// Snapshot is the result of LoadState.
type Snapshot struct {
	Tasks           map[string]*task.Task
	Events          []task.Event
	Approvals       map[string]*task.ApprovalItem
	ApprovalActions []task.ApprovalAction
	// Idempotency maps IdemKey(taskID, key) to the referenced task id.
	Idempotency map[string]string
}

// NewSnapshot returns an empty snapshot with all maps allocated.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Tasks:       make(map[string]*task.Task),
		Approvals:   make(map[string]*task.ApprovalItem),
		Idempotency: make(map[string]string),
	}
}

// IdemKey builds the composite in-memory key for a run idempotency
// record. The separator cannot occur in ids.
func IdemKey(taskID, key string) string {
	return taskID + "\x1f" + key
}

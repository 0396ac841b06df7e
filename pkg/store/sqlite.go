package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redsunjin/NestClaw/pkg/task"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the embedded file-backed store. Opening it creates the
// database file, its parent directory, and the schema.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadState(ctx context.Context) (*Snapshot, error) {
	return loadState(ctx, s.db)
}

func (s *SQLiteStore) SaveTask(ctx context.Context, t *task.Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO tasks (task_id, status, requested_by, updated_at, payload)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (task_id) DO UPDATE SET
            status = excluded.status,
            requested_by = excluded.requested_by,
            updated_at = excluded.updated_at,
            payload = excluded.payload`,
		t.ID, string(t.Status), t.RequestedBy, t.UpdatedAt, string(payload))
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveEvent(ctx context.Context, e task.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO events (event_id, task_id, event_type, created_at, seq, payload)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (event_id) DO UPDATE SET payload = excluded.payload`,
		e.ID, e.TaskID, e.Type, e.CreatedAt, e.Seq, string(payload))
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveApproval(ctx context.Context, a *task.ApprovalItem) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal approval: %w", err)
	}
	updatedAt := a.ResolvedAt
	if updatedAt == "" {
		updatedAt = a.CreatedAt
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO approvals (queue_id, task_id, status, approver_group, updated_at, payload)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (queue_id) DO UPDATE SET
            status = excluded.status,
            updated_at = excluded.updated_at,
            payload = excluded.payload`,
		a.QueueID, a.TaskID, string(a.Status), a.ApproverGroup, updatedAt, string(payload))
	if err != nil {
		return fmt.Errorf("save approval: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveApprovalAction(ctx context.Context, a task.ApprovalAction) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal approval action: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO approval_actions (action_id, queue_id, task_id, action, created_at, seq, payload)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (action_id) DO UPDATE SET payload = excluded.payload`,
		a.ActionID, a.QueueID, a.TaskID, a.Action, a.CreatedAt, a.Seq, string(payload))
	if err != nil {
		return fmt.Errorf("save approval action: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveIdempotency(ctx context.Context, taskID, key, ref string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO run_idempotency (task_id, idem_key, task_ref)
        VALUES (?, ?, ?)
        ON CONFLICT (task_id, idem_key) DO UPDATE SET task_ref = excluded.task_ref`,
		taskID, key, ref)
	if err != nil {
		return fmt.Errorf("save idempotency: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

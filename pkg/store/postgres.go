package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/redsunjin/NestClaw/pkg/task"

	_ "github.com/lib/pq"
)

// PostgresStore is the networked backend. The schema is normally applied
// by the migration step; OpenPostgres still runs the idempotent DDL so a
// fresh database works without it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres wraps an existing connection. The caller owns schema setup.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects with the given DSN, verifies the connection and
// ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) LoadState(ctx context.Context) (*Snapshot, error) {
	return loadState(ctx, s.db)
}

func (s *PostgresStore) SaveTask(ctx context.Context, t *task.Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO tasks (task_id, status, requested_by, updated_at, payload)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (task_id) DO UPDATE SET
            status = EXCLUDED.status,
            requested_by = EXCLUDED.requested_by,
            updated_at = EXCLUDED.updated_at,
            payload = EXCLUDED.payload`,
		t.ID, string(t.Status), t.RequestedBy, t.UpdatedAt, string(payload))
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveEvent(ctx context.Context, e task.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO events (event_id, task_id, event_type, created_at, seq, payload)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (event_id) DO UPDATE SET payload = EXCLUDED.payload`,
		e.ID, e.TaskID, e.Type, e.CreatedAt, e.Seq, string(payload))
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveApproval(ctx context.Context, a *task.ApprovalItem) error {
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
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (queue_id) DO UPDATE SET
            status = EXCLUDED.status,
            updated_at = EXCLUDED.updated_at,
            payload = EXCLUDED.payload`,
		a.QueueID, a.TaskID, string(a.Status), a.ApproverGroup, updatedAt, string(payload))
	if err != nil {
		return fmt.Errorf("save approval: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveApprovalAction(ctx context.Context, a task.ApprovalAction) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal approval action: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO approval_actions (action_id, queue_id, task_id, action, created_at, seq, payload)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (action_id) DO UPDATE SET payload = EXCLUDED.payload`,
		a.ActionID, a.QueueID, a.TaskID, a.Action, a.CreatedAt, a.Seq, string(payload))
	if err != nil {
		return fmt.Errorf("save approval action: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveIdempotency(ctx context.Context, taskID, key, ref string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO run_idempotency (task_id, idem_key, task_ref)
        VALUES ($1, $2, $3)
        ON CONFLICT (task_id, idem_key) DO UPDATE SET task_ref = EXCLUDED.task_ref`,
		taskID, key, ref)
	if err != nil {
		return fmt.Errorf("save idempotency: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

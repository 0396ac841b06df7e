package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/redsunjin/NestClaw/pkg/task"
)

// loadState is shared by both SQL backends; the read-side SQL carries no
// placeholders and is dialect-neutral.
func loadState(ctx context.Context, db *sql.DB) (*Snapshot, error) {
	snap := NewSnapshot()

	rows, err := db.QueryContext(ctx, `SELECT payload FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	if err := scanPayloads(rows, func(payload []byte) error {
		var t task.Task
		if err := json.Unmarshal(payload, &t); err != nil {
			return err
		}
		snap.Tasks[t.ID] = &t
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	// created_at is second-precision, so the engine-assigned seq is the
	// only total order over same-second rows. Equal-seq rows (pre-seq
	// data) fall back to the timestamp.
	rows, err = db.QueryContext(ctx, `SELECT payload, seq FROM events ORDER BY seq, created_at`)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if err := scanSeqPayloads(rows, func(payload []byte, seq uint64) error {
		var e task.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		e.Seq = seq
		snap.Events = append(snap.Events, e)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	rows, err = db.QueryContext(ctx, `SELECT payload FROM approvals`)
	if err != nil {
		return nil, fmt.Errorf("load approvals: %w", err)
	}
	if err := scanPayloads(rows, func(payload []byte) error {
		var a task.ApprovalItem
		if err := json.Unmarshal(payload, &a); err != nil {
			return err
		}
		snap.Approvals[a.QueueID] = &a
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load approvals: %w", err)
	}

	rows, err = db.QueryContext(ctx, `SELECT payload, seq FROM approval_actions ORDER BY seq, created_at`)
	if err != nil {
		return nil, fmt.Errorf("load approval actions: %w", err)
	}
	if err := scanSeqPayloads(rows, func(payload []byte, seq uint64) error {
		var a task.ApprovalAction
		if err := json.Unmarshal(payload, &a); err != nil {
			return err
		}
		a.Seq = seq
		snap.ApprovalActions = append(snap.ApprovalActions, a)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load approval actions: %w", err)
	}

	rows, err = db.QueryContext(ctx, `SELECT task_id, idem_key, task_ref FROM run_idempotency`)
	if err != nil {
		return nil, fmt.Errorf("load idempotency: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var taskID, key, ref string
		if err := rows.Scan(&taskID, &key, &ref); err != nil {
			return nil, fmt.Errorf("load idempotency: %w", err)
		}
		snap.Idempotency[IdemKey(taskID, key)] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load idempotency: %w", err)
	}

	return snap, nil
}

func scanSeqPayloads(rows *sql.Rows, decode func(payload []byte, seq uint64) error) error {
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var payload []byte
		var seq uint64
		if err := rows.Scan(&payload, &seq); err != nil {
			return err
		}
		if err := decode(payload, seq); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanPayloads(rows *sql.Rows, decode func(payload []byte) error) error {
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return err
		}
		if err := decode(payload); err != nil {
			return err
		}
	}
	return rows.Err()
}

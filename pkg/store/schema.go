package store

// schemaDDL is the five-table layout shared by both SQL backends. Every
// table keeps the full entity as a JSON payload column next to the few
// columns that are filtered or ordered on. The statements are idempotent
// so backends can run them on every open.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS tasks (
    task_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    requested_by TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    event_id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    created_at TEXT NOT NULL,
    seq BIGINT NOT NULL DEFAULT 0,
    payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS approvals (
    queue_id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    status TEXT NOT NULL,
    approver_group TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS approval_actions (
    action_id TEXT PRIMARY KEY,
    queue_id TEXT NOT NULL,
    task_id TEXT NOT NULL,
    action TEXT NOT NULL,
    created_at TEXT NOT NULL,
    seq BIGINT NOT NULL DEFAULT 0,
    payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_idempotency (
    task_id TEXT NOT NULL,
    idem_key TEXT NOT NULL,
    task_ref TEXT NOT NULL,
    PRIMARY KEY (task_id, idem_key)
);
`

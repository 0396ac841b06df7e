// Package migrations embeds the SQL applied by `nestclaw migrate`.
// The SQLite backend creates its schema on open; Postgres deployments
// run these against the DSN before first start.
package migrations

import "embed"

// Postgres holds the numbered up/down scripts for the PostgreSQL
// backend.
//
//go:embed postgres/*.sql
var Postgres embed.FS

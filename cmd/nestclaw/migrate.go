package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/redsunjin/NestClaw/migrations"
	"github.com/redsunjin/NestClaw/pkg/config"
)

// runMigrate applies the embedded Postgres migrations against
// NESTCLAW_DATABASE_URL. "up" runs the numbered *_init scripts in
// order; "down" runs the *_down scripts in reverse.
func runMigrate(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("migrate", flag.ContinueOnError)
	flags.SetOutput(stderr)
	if err := flags.Parse(args); err != nil {
		return 2
	}
	direction := flags.Arg(0)
	if direction == "" {
		direction = "up"
	}
	if direction != "up" && direction != "down" {
		fmt.Fprintf(stderr, "migrate: unknown direction %q (want up or down)\n", direction)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(stderr, "migrate: NESTCLAW_DATABASE_URL is not set")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := applyMigrations(ctx, cfg.DatabaseURL, direction, stdout); err != nil {
		fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	return 0
}

func applyMigrations(ctx context.Context, dsn, direction string, stdout io.Writer) error {
	scripts, err := migrationScripts(direction)
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}

	for _, name := range scripts {
		ddl, err := migrations.Postgres.ReadFile("postgres/" + name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		fmt.Fprintf(stdout, "applied %s\n", name)
	}
	return nil
}

// migrationScripts selects the embedded scripts for one direction,
// ordered by their numeric prefix; down scripts run highest first.
func migrationScripts(direction string) ([]string, error) {
	entries, err := fs.Glob(migrations.Postgres, "postgres/*.sql")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := strings.TrimPrefix(e, "postgres/")
		isDown := strings.HasSuffix(name, "_down.sql")
		if (direction == "down") == isDown {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no %s migrations embedded", direction)
	}
	sort.Strings(names)
	if direction == "down" {
		for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
			names[i], names[j] = names[j], names[i]
		}
	}
	return names, nil
}

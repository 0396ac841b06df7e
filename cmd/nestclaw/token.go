package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/redsunjin/NestClaw/pkg/auth"
	"github.com/redsunjin/NestClaw/pkg/config"
)

// runToken mints a local HS256 JWT signed with the configured secret,
// for use against servers in local or mixed auth mode.
func runToken(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sub := fs.String("sub", "", "actor id placed in the sub claim (required)")
	role := fs.String("role", "requester", "actor role (requester|reviewer|approver|admin)")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *sub == "" {
		fmt.Fprintln(stderr, "token: --sub is required")
		fs.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "token: %v\n", err)
		return 1
	}
	signed, err := auth.IssueDevToken(cfg.JWTSecret, *sub, *role, *ttl)
	if err != nil {
		fmt.Fprintf(stderr, "token: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, signed)
	return 0
}

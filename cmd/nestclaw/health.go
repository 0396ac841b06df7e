package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/redsunjin/NestClaw/pkg/client"
)

// runHealth probes a running server and reports its status.
func runHealth(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("health", flag.ContinueOnError)
	flags.SetOutput(stderr)
	baseURL := flags.String("base-url", "http://127.0.0.1:8080", "server base URL")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	c := client.New(*baseURL, client.WithTimeout(5*time.Second))
	res, err := c.Health()
	if err != nil {
		fmt.Fprintf(stderr, "health: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "server %s: %s\n", *baseURL, res["status"])
	return 0
}

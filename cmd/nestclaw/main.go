// Command nestclaw runs the work-delegation orchestrator and its
// companion tools: the HTTP service, an interactive console over the
// API, a dev token minter, the Postgres migration runner, and a health
// probe.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// Run dispatches on the first argument. No argument means server.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServer(stderr)
	}

	switch args[1] {
	case "server", "serve":
		return runServer(stderr)
	case "cli":
		return runCLI(args[2:], stdin, stdout, stderr)
	case "token":
		return runToken(args[2:], stdout, stderr)
	case "migrate":
		return runMigrate(args[2:], stdout, stderr)
	case "health":
		return runHealth(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if args[1][0] == '-' {
			return runServer(stderr)
		}
		fmt.Fprintf(stderr, "unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: nestclaw [command]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  server    Run the HTTP service (default)")
	fmt.Fprintln(w, "  cli       Interactive console over the API")
	fmt.Fprintln(w, "  token     Mint a local dev JWT")
	fmt.Fprintln(w, "  migrate   Apply Postgres migrations (up|down)")
	fmt.Fprintln(w, "  health    Probe a running server")
	fmt.Fprintln(w, "  help      Show this help")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Configuration comes from NESTCLAW_* environment variables;")
	fmt.Fprintln(w, "NESTCLAW_CONFIG may name a YAML profile.")
}

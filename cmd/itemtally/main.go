package main

import (
	"context"

	"github.com/itemtally/itemtally/internal/cmd"
	"github.com/itemtally/itemtally/internal/observability"
	"github.com/itemtally/itemtally/internal/server/handlers"
)

// Version information set via ldflags during build
// Example: go build -ldflags="-X main.version=1.0.0 -X main.commit=abc123 -X main.buildDate=2025-10-28"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(context.Background()); err != nil {
		// Commands log their own failures; this only maps the exit code.
		cmd.ExitWithCode(observability.CLILogger, cmd.ExitCodeFor(err), "Command execution failed", err)
	}
}

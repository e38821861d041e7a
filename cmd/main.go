package main

import (
	"fmt"
	"os"

	"github.com/rxtech-lab/auditsmart/internal/cli"
)

// Build information (set via ldflags)
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

func main() {
	err := cli.Execute(cli.BuildInfo{
		Version:    Version,
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

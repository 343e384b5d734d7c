// Command finsight is the FinSight dashboard agent: it keeps dashboard data
// in sync with the analytics API and serves it, with persisted settings, on
// a local HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/finsight-labs/finsight-go/internal/cli"
)

func main() {
	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cli.Execute(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

// Command etl downloads the NCEI Storm Events archives, extracts them,
// converts the CSVs to JSON batches and loads the batches into MongoDB or
// publishes them to Kafka. Each stage is a separate subcommand.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// Command cgc co-clusters and tri-clusters nonnegative arrays read from CSV.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/TrevorS/cgc/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/doeshing/q/internal/infrastructure/cli"
	"github.com/doeshing/q/internal/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	// The first interrupt cancels the run (forwarded to a running command);
	// stop() restores the default handler so a second one ends q at once.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	opts := cli.Options{Verbose: logger.VerboseFromEnv()}

	root, err := cli.NewRootCmd(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return cli.ExitCodeFor(err)
	}

	if err := root.ExecuteContext(ctx); err != nil {
		cli.RenderError(os.Stderr, err)
		return cli.ExitCodeFor(err)
	}
	return 0
}

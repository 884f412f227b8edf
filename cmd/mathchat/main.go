package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codefionn/mathchat/internal/cli"
	"github.com/codefionn/mathchat/internal/logger"
	"github.com/codefionn/mathchat/internal/securemem"
)

func main() {
	if err := run(); err != nil {
		if !errors.Is(err, cli.ErrUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run() error {
	args := os.Args[1:]

	// The server shuts down gracefully on SIGINT, so memguard must not exit
	// the process first.
	if !cli.IsServe(args) {
		securemem.Init()
	}
	defer securemem.Purge()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() {
		if err := logger.Global().Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	}()

	err := cli.New().Run(ctx, args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

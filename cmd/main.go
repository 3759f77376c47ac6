package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-antiraid/internal/bootstrap"
	"go-antiraid/internal/logging"
)

func main() {
	fmt.Println("Starting anti-raid engine")

	b := bootstrap.New("")
	if err := b.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Start(ctx); err != nil {
		logging.Critical("Start failed: %v", err)
		b.Shutdown()
		os.Exit(1)
	}

	logging.Info("Anti-raid engine running. Press Ctrl+C to exit.")
	<-ctx.Done()

	logging.Info("Shutdown signal received")
	if err := b.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
}

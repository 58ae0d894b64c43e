package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Long crawls should stop cleanly between pages on Ctrl+C.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

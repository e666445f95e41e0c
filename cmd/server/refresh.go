package main

import (
	"context"
	"errors"
	"log/slog"
)

type starter interface {
	Start(ctx context.Context) error
}

// runInBackground starts w and returns a stop function that cancels it and
// waits for Start to return.
func runInBackground(ctx context.Context, w starter, logger *slog.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("refresh worker stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

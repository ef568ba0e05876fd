package main

// Notes:
// - notifyContext: only cancellation through stop() and the parent is tested;
//   real signal delivery is platform-specific.

import (
	"context"
	"os"
	"slices"
	"testing"
)

func TestShutdownSignals(t *testing.T) {
	t.Parallel()

	if !slices.Contains(shutdownSignals, os.Interrupt) {
		t.Errorf("shutdownSignals = %v, want os.Interrupt included", shutdownSignals)
	}
}

func TestNotifyContext(t *testing.T) {
	t.Parallel()

	t.Run("stop cancels context", func(t *testing.T) {
		t.Parallel()

		ctx, stop := notifyContext(context.Background())
		if ctx.Err() != nil {
			t.Fatal("context should not be cancelled initially")
		}
		stop()

		if ctx.Err() == nil {
			t.Fatal("context should be cancelled after stop()")
		}
	})

	t.Run("inherits parent cancellation", func(t *testing.T) {
		t.Parallel()

		parent, cancel := context.WithCancel(context.Background())
		ctx, stop := notifyContext(parent)
		defer stop()

		cancel()

		<-ctx.Done()
	})
}

// Package scheduling runs the gitwatch watch loop until it fails or the process is asked to stop.
// It writes the startup message with the first scheduled observation, forwards
// interrupt signals as cancellation and waits for an in-flight observation before
// shutting down.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/gitwatch/pkg/types"
	"github.com/nicholas-fedor/gitwatch/pkg/watch"
)

// watchWaitTimeout bounds the wait for an in-flight observation at shutdown.
const watchWaitTimeout = 60 * time.Second

// ErrWatchStopped wraps the error that ended the watch loop on its own.
var ErrWatchStopped = errors.New("watch stopped")

// Watcher is the part of watch.Handler the runner needs.
type Watcher interface {
	WatchChanges(ctx context.Context, preRun bool, fn watch.ChangeFunc) error
	NextRun(t time.Time) time.Time
}

// WaitForRunningWatch waits for the watch loop to return after it was cancelled.
//
// Parameters:
//   - ctx: Context for giving up early.
//   - done: Receives the terminal error of the watch loop.
//
// Returns:
//   - error: The loop's terminal error, or nil if the wait was abandoned.
func WaitForRunningWatch(ctx context.Context, done <-chan error) error {
	logrus.Debug("Waiting for running observation to finish.")

	select {
	case err := <-done:
		logrus.Debug("Watch loop finished.")

		return err
	case <-time.After(watchWaitTimeout):
		logrus.Warn("Timeout waiting for running observation to finish, proceeding with shutdown.")
	case <-ctx.Done():
		logrus.Warn("Context cancelled while waiting for running observation.")
	}

	return nil
}

// RunWatch runs watcher until ctx is cancelled, SIGINT or SIGTERM is received,
// or the watch loop fails.
//
// Parameters:
//   - ctx: Context controlling the runner's lifecycle.
//   - watcher: Watch handler.
//   - preRun: Report the current state before the first wait.
//   - onChange: Callback for every change.
//   - writeStartupMessage: Called once with the first scheduled observation.
//   - notifier: Closed on shutdown, may be nil.
//
// Returns:
//   - error: ErrWatchStopped wrapping the loop error when the loop ended on its
//     own, nil after a requested shutdown.
func RunWatch(
	ctx context.Context,
	watcher Watcher,
	preRun bool,
	onChange watch.ChangeFunc,
	writeStartupMessage func(nextRun time.Time),
	notifier types.Notifier,
) error {
	if notifier != nil {
		defer notifier.Close()
	}

	writeStartupMessage(watcher.NextRun(time.Now()))

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- watcher.WatchChanges(watchCtx, preRun, onChange)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	defer signal.Stop(interrupt)

	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}

		return fmt.Errorf("%w: %w", ErrWatchStopped, err)
	case <-ctx.Done():
		logrus.Debug("Context canceled, stopping watch...")
	case sig := <-interrupt:
		logrus.WithField("signal", sig).Debug("Received interrupt signal, stopping watch...")
	}

	cancel()

	err := WaitForRunningWatch(context.WithoutCancel(ctx), done)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrWatchStopped, err)
	}

	logrus.Debug("Watch stopped.")

	return nil
}

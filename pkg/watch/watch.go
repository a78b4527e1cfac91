package watch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// OnChange receives the whole new state. It is called once per changed branch
// and must inspect the state itself to find which branch changed.
type OnChange func(state types.RepoState)

// ChangeFunc receives one branch change together with the state it was
// observed in. The change is nil for the pre-run call.
type ChangeFunc func(change *types.BranchChange, state types.RepoState)

// Watch observes the repository on the configured schedule until ctx is done
// or an observation fails.
//
// With preRun, onChange is called once with the current state before the first
// wait. Every cycle calls onChange synchronously for each new or updated branch,
// so a slow callback delays the next observation.
//
// Parameters:
//   - ctx: Context whose cancellation stops the loop.
//   - preRun: Call onChange with the current state before waiting.
//   - onChange: Change callback.
//
// Returns:
//   - error: ErrBusy, ErrNoState for preRun without a state, the observation
//     error that ended the loop, or ctx.Err() after cancellation.
func (h *Handler) Watch(ctx context.Context, preRun bool, onChange OnChange) error {
	release, err := h.acquire()
	if err != nil {
		return err
	}
	defer release()

	return h.run(ctx, preRun, adapt(onChange))
}

// WatchChanges is Watch with a callback that also receives the branch change
// which triggered it.
func (h *Handler) WatchChanges(ctx context.Context, preRun bool, fn ChangeFunc) error {
	release, err := h.acquire()
	if err != nil {
		return err
	}
	defer release()

	return h.run(ctx, preRun, fn)
}

// adapt turns an OnChange callback into a ChangeFunc.
func adapt(onChange OnChange) ChangeFunc {
	if onChange == nil {
		return nil
	}

	return func(_ *types.BranchChange, state types.RepoState) {
		onChange(state)
	}
}

// WatchAsync runs Watch in a new goroutine.
//
// The handler is reserved before WatchAsync returns, so a concurrent Observe or
// Watch fails with ErrBusy from that point on. The returned channel receives the
// terminal error and is then closed.
func (h *Handler) WatchAsync(ctx context.Context, preRun bool, onChange OnChange) <-chan error {
	errCh := make(chan error, 1)

	release, err := h.acquire()
	if err != nil {
		errCh <- err
		close(errCh)

		return errCh
	}

	go func() {
		defer close(errCh)
		defer release()

		errCh <- h.run(ctx, preRun, adapt(onChange))
	}()

	return errCh
}

// run is the watch loop. Callers must hold the lock token.
func (h *Handler) run(ctx context.Context, preRun bool, onChange ChangeFunc) error {
	if onChange == nil {
		onChange = func(*types.BranchChange, types.RepoState) {}
	}

	clog := h.log()

	if preRun {
		state := h.previousState()
		if state == nil {
			return ErrNoState
		}

		clog.Debug("Running change handler before first wait")
		onChange(nil, state.Clone())
	}

	for {
		now := time.Now()
		clog.WithField("next", h.schedule.Next(now)).Trace("Waiting for next observation")

		if err := waitNext(ctx, h.schedule, now, h.trigger); err != nil {
			clog.Debug("Watch cancelled")

			return err
		}

		obs, err := h.observe(ctx)
		if err != nil {
			clog.WithError(err).Error("Observation failed, stopping watch")

			return err
		}

		if len(obs.diff.Changes) == 0 {
			clog.Debug("No new commits found")

			continue
		}

		for _, change := range obs.diff.Changes {
			clog.WithFields(logrus.Fields{
				"branch": change.Branch,
				"kind":   change.Kind,
				"commit": change.Current.ID.ShortID(),
				"notify": "no",
			}).Info("Branch changed")

			onChange(&change, obs.state.Clone())
		}
	}
}

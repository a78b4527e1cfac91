package watch

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nicholas-fedor/gitwatch/pkg/metrics"
	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// observation is the full result of one cycle.
type observation struct {
	state        types.RepoState
	diff         DiffResult
	cloneSkipped bool
}

// Observe runs one observation cycle and stores the resulting state.
//
// On error the stored state is left as it was.
//
// Parameters:
//   - ctx: Context for cancellation of provider I/O.
//
// Returns:
//   - types.RepoState: Copy of the new state.
//   - error: ErrBusy, or the acquisition or diff error that ended the cycle.
func (h *Handler) Observe(ctx context.Context) (types.RepoState, error) {
	release, err := h.acquire()
	if err != nil {
		return types.RepoState{}, err
	}
	defer release()

	obs, err := h.observe(ctx)
	if err != nil {
		return types.RepoState{}, err
	}

	return obs.state.Clone(), nil
}

// observe runs one cycle. Callers must hold the lock token.
func (h *Handler) observe(ctx context.Context) (obs observation, err error) {
	ctx, span := h.tracer.Start(ctx, "gitwatch.observe", trace.WithAttributes(
		attribute.String("gitwatch.repo", h.cfg.location.String()),
		attribute.String("gitwatch.watcher", h.id),
		attribute.Bool("gitwatch.shallow", h.cfg.shallow),
	))
	defer span.End()

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			h.record(metrics.NewFailedMetric())
			h.log().WithError(err).Debug("Observation failed")
		}
	}()

	previous := h.previousState()

	if h.cfg.probe && previous != nil && h.remoteUnchanged(ctx, previous) {
		state := types.RepoState{
			ObservedAt:  h.observedAt(previous),
			BranchHeads: previous.BranchHeads.Clone(),
			PathChanges: types.PathChangeSet{},
		}
		h.store(state)

		metric := metrics.NewMetric(state, 0, 0)
		metric.CloneSkipped = true
		h.record(metric)

		span.SetAttributes(attribute.Bool("gitwatch.clone_skipped", true))
		h.log().Debug("No remote head moved, skipped clone")

		return observation{state: state, cloneSkipped: true}, nil
	}

	snap, err := h.provider.Clone(ctx, h.cfg.location, h.cfg.credential, h.cfg.shallow)
	if err != nil {
		return observation{}, fmt.Errorf("failed to acquire snapshot: %w", err)
	}
	defer h.closeSnapshot(snap)

	heads, err := snap.BranchHeads(ctx, h.branchFilter)
	if err != nil {
		return observation{}, fmt.Errorf("failed to read branch heads: %w", err)
	}

	diff, err := Diff(ctx, snap, previous, heads, h.pathFilter)
	if err != nil {
		return observation{}, err
	}

	state := types.RepoState{
		ObservedAt:  h.observedAt(previous),
		BranchHeads: heads,
		PathChanges: diff.PathChanges,
	}
	h.store(state)

	h.record(metrics.NewMetric(state, len(diff.Changes), len(diff.Unresolved)))

	span.SetAttributes(
		attribute.Int("gitwatch.branches", len(heads)),
		attribute.Int("gitwatch.changes", len(diff.Changes)),
		attribute.Int("gitwatch.partial_diffs", len(diff.Unresolved)),
	)

	h.log().WithFields(logrus.Fields{
		"branches": len(heads),
		"changes":  len(diff.Changes),
		"partial":  len(diff.Unresolved),
	}).Debug("Observation complete")

	return observation{state: state, diff: diff}, nil
}

// remoteUnchanged lists remote heads and reports whether they equal previous.
//
// Any probe failure falls back to a full clone.
func (h *Handler) remoteUnchanged(ctx context.Context, previous *types.RepoState) bool {
	lister, ok := h.provider.(types.HeadLister)
	if !ok {
		return false
	}

	heads, err := lister.ListHeads(ctx, h.cfg.location, h.cfg.credential, h.branchFilter)
	if err != nil {
		h.log().WithError(err).Debug("Remote probe failed, cloning")

		return false
	}

	if len(heads) != len(previous.BranchHeads) {
		return false
	}

	for name, id := range heads {
		prior, ok := previous.BranchHeads[name]
		if !ok || !prior.ID.Equal(id) {
			return false
		}
	}

	return true
}

func (h *Handler) record(metric *metrics.Metric) {
	if h.metrics != nil {
		h.metrics.RegisterObservation(metric)
	}
}

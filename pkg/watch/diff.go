package watch

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/gitwatch/pkg/filters"
	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// Classify compares freshly read branch heads with the previous state.
//
// Without a previous state every branch is new. The result has one entry per
// branch in current and does not depend on map iteration order.
//
// Parameters:
//   - previous: Last stored state, or nil before the first observation.
//   - current: Branch heads read in this cycle, already filtered.
//
// Returns:
//   - map[string]types.BranchChange: Classification per branch.
func Classify(previous *types.RepoState, current types.BranchHeads) map[string]types.BranchChange {
	changes := make(map[string]types.BranchChange, len(current))

	for branch, head := range current {
		change := types.BranchChange{Branch: branch, Kind: types.ChangeNew, Current: head}

		if previous != nil {
			if prior, ok := previous.BranchHeads[branch]; ok {
				change.Prior = prior.ID

				change.Kind = types.ChangeUpdated
				if prior.ID.Equal(head.ID) {
					change.Kind = types.ChangeUnchanged
				}
			}
		}

		changes[branch] = change
	}

	return changes
}

// DiffResult is the outcome of diffing one observation against the previous state.
type DiffResult struct {
	// PathChanges holds the changed paths of every reported branch.
	PathChanges types.PathChangeSet
	// Changes lists the branches that fire the change callback, sorted by name.
	Changes []types.BranchChange
	// Unresolved lists updated branches whose range could not be resolved, sorted by name.
	Unresolved []string
}

// Diff computes the path change set for current against previous.
//
// New branches report the head commit's own diff. Updated branches report the
// range diff from the prior head. An unresolvable range omits the branch from
// PathChanges and records it in Unresolved without failing the cycle. With a
// path filter, paths outside it are dropped and a branch left with no paths is
// neither reported nor fired.
//
// Parameters:
//   - ctx: Context for cancellation.
//   - snap: Snapshot holding every current head.
//   - previous: Last stored state, or nil.
//   - current: Branch heads read in this cycle.
//   - pathFilter: Optional path filter, nil keeps every path.
//
// Returns:
//   - DiffResult: Path changes and firing branches.
//   - error: Non-nil if the snapshot fails for a reason other than an unresolvable range.
func Diff(
	ctx context.Context,
	snap types.Snapshot,
	previous *types.RepoState,
	current types.BranchHeads,
	pathFilter *filters.PathFilter,
) (DiffResult, error) {
	result := DiffResult{PathChanges: make(types.PathChangeSet)}
	classified := Classify(previous, current)

	for _, branch := range current.Names() {
		change := classified[branch]
		clog := logrus.WithFields(logrus.Fields{
			"branch": branch,
			"commit": change.Current.ID.ShortID(),
			"kind":   change.Kind,
		})

		var (
			paths []string
			err   error
		)

		if !change.Kind.Fires() {
			clog.Trace("Branch unchanged")

			continue
		}

		switch change.Kind {
		case types.ChangeNew:
			paths, err = snap.ChangedPathsForCommit(ctx, change.Current.ID)
			if err != nil {
				return DiffResult{}, fmt.Errorf("failed to diff new branch %s: %w", branch, err)
			}
		case types.ChangeUpdated:
			var resolved bool

			paths, resolved, err = snap.ChangedPathsBetween(ctx, change.Prior, change.Current.ID)
			if err != nil {
				return DiffResult{}, fmt.Errorf("failed to diff branch %s: %w", branch, err)
			}

			if !resolved {
				clog.WithField("prior", change.Prior.ShortID()).
					Warn("Unable to resolve changed paths for branch, omitting path changes")

				result.Unresolved = append(result.Unresolved, branch)
				result.Changes = append(result.Changes, change)

				continue
			}
		}

		if pathFilter != nil {
			paths = pathFilter.Apply(paths)
			if len(paths) == 0 {
				clog.Debug("No changed paths match the path filter")

				continue
			}
		}

		if paths == nil {
			paths = []string{}
		}

		result.PathChanges[branch] = slices.Clone(paths)
		result.Changes = append(result.Changes, change)

		clog.WithField("paths", len(paths)).Debug("Branch changed")
	}

	return result, nil
}

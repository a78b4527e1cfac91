package types

import "context"

// BranchFilter decides whether a branch is observed.
type BranchFilter func(branch string) bool

// Provider acquires working snapshots of a remote repository.
type Provider interface {
	// Clone fetches the repository into transient storage owned by the returned Snapshot.
	// Shallow requests a single-commit-depth fetch of every branch.
	Clone(
		ctx context.Context,
		location RepositoryLocation,
		cred Credential,
		shallow bool,
	) (Snapshot, error)
}

// Snapshot is a fetched copy of a repository.
//
// Close releases any storage held by the snapshot and must be called exactly once.
type Snapshot interface {
	// BranchHeads returns the head commit of every remote branch accepted by filter.
	// A nil filter accepts all branches.
	BranchHeads(ctx context.Context, filter BranchFilter) (BranchHeads, error)

	// Commit resolves a commit id present in the snapshot.
	Commit(ctx context.Context, id CommitID) (CommitMeta, error)

	// ChangedPathsForCommit returns the paths touched by a single commit relative to its
	// parent, or every file at the commit when it has no parent.
	ChangedPathsForCommit(ctx context.Context, id CommitID) ([]string, error)

	// ChangedPathsBetween returns the paths differing between from and to.
	// The boolean is false when the range cannot be resolved, for example when from is
	// missing from a shallow copy or the histories are unrelated.
	ChangedPathsBetween(ctx context.Context, from, to CommitID) ([]string, bool, error)

	Close() error
}

// HeadLister lists remote branch heads without fetching objects.
//
// Providers may implement it so an observation can skip the clone when nothing moved.
type HeadLister interface {
	ListHeads(
		ctx context.Context,
		location RepositoryLocation,
		cred Credential,
		filter BranchFilter,
	) (map[string]CommitID, error)
}

// Package client provides the go-git backed repository provider for gitwatch.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/sirupsen/logrus"

	gitAuth "github.com/nicholas-fedor/gitwatch/pkg/git/auth"
	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// remoteName is the remote every snapshot is cloned from.
const remoteName = "origin"

// tempDirPattern names the per-cycle clone directories.
const tempDirPattern = "gitwatch-*"

// Option configures a DefaultClient.
type Option func(*DefaultClient)

// WithTempRoot places clone directories under root instead of os.TempDir.
func WithTempRoot(root string) Option {
	return func(c *DefaultClient) {
		c.tempRoot = root
	}
}

// DefaultClient implements types.Provider and types.HeadLister with go-git.
type DefaultClient struct {
	tempRoot string
}

// NewClient creates a new Git client.
//
// Parameters:
//   - opts: Optional client settings.
//
// Returns:
//   - *DefaultClient: Configured Git client instance.
func NewClient(opts ...Option) *DefaultClient {
	c := &DefaultClient{}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Clone fetches the repository into a fresh temporary directory.
//
// The directory belongs to the returned snapshot and is removed by its Close.
// On failure the directory is removed before returning.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control.
//   - location: Repository to clone.
//   - cred: Optional credential, nil for anonymous access.
//   - shallow: Fetch only the head commit of every branch.
//
// Returns:
//   - types.Snapshot: Snapshot backed by the cloned repository.
//   - error: A types.Error classifying the failure.
func (c *DefaultClient) Clone(
	ctx context.Context,
	location types.RepositoryLocation,
	cred types.Credential,
	shallow bool,
) (types.Snapshot, error) {
	repoURL := location.String()

	fields := logrus.Fields{
		"repo":    repoURL,
		"auth":    types.RedactCredential(cred),
		"shallow": shallow,
	}

	authMethod, err := gitAuth.CreateAuthMethod(cred)
	if err != nil {
		logrus.WithFields(fields).WithError(err).Debug("Authentication setup failed")

		return nil, types.Error{
			Op:     "auth",
			URL:    repoURL,
			Kind:   types.KindAuthFailed,
			Reason: "authentication setup failed",
			Cause:  err,
		}
	}

	dir, err := os.MkdirTemp(c.tempRoot, tempDirPattern)
	if err != nil {
		return nil, types.Error{
			Op:     "clone",
			URL:    repoURL,
			Kind:   types.KindOther,
			Reason: "failed to create clone directory",
			Cause:  err,
		}
	}

	logrus.WithFields(fields).WithField("dir", dir).Debug("Cloning repository")

	opts := &git.CloneOptions{
		URL:        repoURL,
		Auth:       authMethod,
		RemoteName: remoteName,
		Tags:       git.NoTags,
	}
	if shallow {
		opts.Depth = 1
	}

	repo, err := git.PlainCloneContext(ctx, dir, true, opts)
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		// An empty remote has no branches; serve an empty snapshot rather than failing.
		repo, err = git.PlainInit(dir, true)
	}

	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			logrus.WithFields(fields).WithError(rmErr).Warn("Failed to remove clone directory")
		}

		classified := classifyError("clone", repoURL, err)
		logrus.WithFields(fields).WithError(classified).Debug("Clone failed")

		return nil, classified
	}

	return newSnapshot(repo, dir, repoURL), nil
}

// ListHeads lists remote branch heads without cloning (git ls-remote).
//
// Parameters:
//   - ctx: Context for cancellation and timeout control.
//   - location: Repository to query.
//   - cred: Optional credential, nil for anonymous access.
//   - filter: Branch filter, nil accepts all.
//
// Returns:
//   - map[string]types.CommitID: Head commit per accepted branch.
//   - error: A types.Error classifying the failure.
func (c *DefaultClient) ListHeads(
	ctx context.Context,
	location types.RepositoryLocation,
	cred types.Credential,
	filter types.BranchFilter,
) (map[string]types.CommitID, error) {
	repoURL := location.String()

	logrus.WithFields(logrus.Fields{
		"repo": repoURL,
		"auth": types.RedactCredential(cred),
	}).Debug("Listing remote references")

	authMethod, err := gitAuth.CreateAuthMethod(cred)
	if err != nil {
		return nil, types.Error{
			Op:     "auth",
			URL:    repoURL,
			Kind:   types.KindAuthFailed,
			Reason: "authentication setup failed",
			Cause:  err,
		}
	}

	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: remoteName,
		URLs: []string{repoURL},
	})

	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: authMethod})
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return map[string]types.CommitID{}, nil
	}

	if err != nil {
		classified := classifyError("list", repoURL, err)
		logrus.WithField("repo", repoURL).
			WithError(classified).
			Debug("Failed to list remote references")

		return nil, classified
	}

	heads := filterBranchRefs(refs, filter)

	logrus.WithFields(logrus.Fields{
		"repo":  repoURL,
		"count": len(heads),
		"total": len(refs),
	}).Debug("Listed and filtered remote branches")

	return heads, nil
}

// filterBranchRefs keeps hash references under refs/heads accepted by filter.
func filterBranchRefs(
	refs []*plumbing.Reference,
	filter types.BranchFilter,
) map[string]types.CommitID {
	heads := make(map[string]types.CommitID)

	for _, ref := range refs {
		if !ref.Name().IsBranch() || ref.Type() != plumbing.HashReference {
			continue
		}

		name := ref.Name().Short()
		if name == "" || (filter != nil && !filter(name)) {
			continue
		}

		hash := ref.Hash()
		heads[name] = types.NewCommitID(hash[:])
	}

	return heads
}

// classifyError maps go-git and network failures onto the provider error taxonomy.
func classifyError(op, repoURL string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("git %s %s: %w", op, repoURL, err)
	}

	kind := types.KindOther
	reason := "operation failed"

	var netErr net.Error

	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		kind = types.KindAuthFailed
		reason = "authentication rejected"
	case errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, git.ErrRepositoryNotExists):
		kind = types.KindNotFound
		reason = "repository not found"
	case errors.As(err, &netErr), isUnreachableMessage(err):
		kind = types.KindNetworkUnreachable
		reason = "remote unreachable"
	}

	return types.Error{
		Op:     op,
		URL:    repoURL,
		Kind:   kind,
		Reason: reason,
		Cause:  err,
	}
}

// unreachableMarkers are substrings of transport errors that do not wrap net.Error.
var unreachableMarkers = []string{
	"no such host",
	"connection refused",
	"network is unreachable",
	"i/o timeout",
}

func isUnreachableMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range unreachableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// remoteRefPrefix is where clone stores the remote branch heads.
const remoteRefPrefix = "refs/remotes/" + remoteName + "/"

// Snapshot is a cloned repository held in a temporary directory.
type Snapshot struct {
	repo    *git.Repository
	dir     string
	repoURL string

	closeOnce sync.Once
	closeErr  error
}

// newSnapshot wraps repo. An empty dir means the snapshot does not own any storage.
func newSnapshot(repo *git.Repository, dir, repoURL string) *Snapshot {
	return &Snapshot{repo: repo, dir: dir, repoURL: repoURL}
}

// BranchHeads returns the head commit of every remote branch accepted by filter.
func (s *Snapshot) BranchHeads(
	ctx context.Context,
	filter types.BranchFilter,
) (types.BranchHeads, error) {
	refs, err := s.repo.References()
	if err != nil {
		return nil, s.error("heads", "failed to list references", err)
	}
	defer refs.Close()

	heads := make(types.BranchHeads)

	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		name, ok := remoteBranchName(ref)
		if !ok || (filter != nil && !filter(name)) {
			return nil
		}

		meta, err := s.commitMeta(ref.Hash())
		if err != nil {
			return err
		}

		heads[name] = meta

		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, s.error("heads", "failed to read branch heads", err)
	}

	logrus.WithFields(logrus.Fields{
		"repo":     s.repoURL,
		"branches": len(heads),
	}).Debug("Read branch heads")

	return heads, nil
}

// remoteBranchName extracts the branch name from a remote-tracking hash reference.
func remoteBranchName(ref *plumbing.Reference) (string, bool) {
	if ref.Type() != plumbing.HashReference {
		return "", false
	}

	full := ref.Name().String()
	if !strings.HasPrefix(full, remoteRefPrefix) {
		return "", false
	}

	name := strings.TrimPrefix(full, remoteRefPrefix)
	if name == "" || name == plumbing.HEAD.String() {
		return "", false
	}

	return name, true
}

// Commit resolves a commit present in the snapshot.
func (s *Snapshot) Commit(_ context.Context, id types.CommitID) (types.CommitMeta, error) {
	hash, ok := toHash(id)
	if !ok {
		return types.CommitMeta{}, s.notFound(id)
	}

	meta, err := s.commitMeta(hash)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return types.CommitMeta{}, s.notFound(id)
	}

	if err != nil {
		return types.CommitMeta{}, s.error("resolve", "failed to read commit", err)
	}

	return meta, nil
}

func (s *Snapshot) commitMeta(hash plumbing.Hash) (types.CommitMeta, error) {
	commit, err := s.repo.CommitObject(hash)
	if err != nil {
		return types.CommitMeta{}, err
	}

	return types.CommitMeta{
		ID:        types.NewCommitID(hash[:]),
		Message:   strings.TrimRight(commit.Message, "\n"),
		Timestamp: commit.Committer.When,
	}, nil
}

// ChangedPathsForCommit returns the paths touched by the commit relative to its first parent.
//
// A root commit, or a commit whose parent is absent from a shallow copy, reports every
// file present at the commit.
func (s *Snapshot) ChangedPathsForCommit(ctx context.Context, id types.CommitID) ([]string, error) {
	hash, ok := toHash(id)
	if !ok {
		return nil, s.notFound(id)
	}

	commit, err := s.repo.CommitObject(hash)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, s.notFound(id)
	}

	if err != nil {
		return nil, s.error("diff", "failed to read commit", err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, s.error("diff", "failed to read tree", err)
	}

	if commit.NumParents() == 0 {
		return allFiles(tree)
	}

	parent, err := commit.Parent(0)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		logrus.WithFields(logrus.Fields{
			"repo":   s.repoURL,
			"commit": id.ShortID(),
		}).Debug("Parent missing from shallow copy, reporting all files")

		return allFiles(tree)
	}

	if err != nil {
		return nil, s.error("diff", "failed to read parent commit", err)
	}

	parentTree, err := parent.Tree()
	if err != nil {
		return nil, s.error("diff", "failed to read parent tree", err)
	}

	paths, err := diffTrees(ctx, parentTree, tree)
	if err != nil {
		return nil, s.error("diff", "failed to diff commit", err)
	}

	return paths, nil
}

// ChangedPathsBetween returns the paths differing between from and to.
//
// The boolean is false when from is not in the snapshot or the two commits share no
// history that the snapshot can see.
func (s *Snapshot) ChangedPathsBetween(
	ctx context.Context,
	from, to types.CommitID,
) ([]string, bool, error) {
	fromHash, ok := toHash(from)
	if !ok {
		return nil, false, nil
	}

	toHashValue, ok := toHash(to)
	if !ok {
		return nil, false, s.notFound(to)
	}

	fromCommit, err := s.repo.CommitObject(fromHash)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, s.error("diff", "failed to read commit", err)
	}

	toCommit, err := s.repo.CommitObject(toHashValue)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, false, s.notFound(to)
	}

	if err != nil {
		return nil, false, s.error("diff", "failed to read commit", err)
	}

	bases, err := fromCommit.MergeBase(toCommit)
	if errors.Is(err, plumbing.ErrObjectNotFound) || (err == nil && len(bases) == 0) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, s.error("diff", "failed to compute merge base", err)
	}

	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, false, s.error("diff", "failed to read tree", err)
	}

	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, false, s.error("diff", "failed to read tree", err)
	}

	paths, err := diffTrees(ctx, fromTree, toTree)
	if err != nil {
		return nil, false, s.error("diff", "failed to diff range", err)
	}

	return paths, true, nil
}

// Close removes the snapshot's clone directory.
func (s *Snapshot) Close() error {
	s.closeOnce.Do(func() {
		if s.dir == "" {
			return
		}

		if err := os.RemoveAll(s.dir); err != nil {
			s.closeErr = fmt.Errorf("failed to remove clone directory %s: %w", s.dir, err)

			return
		}

		logrus.WithField("dir", s.dir).Debug("Removed clone directory")
	})

	return s.closeErr
}

func (s *Snapshot) notFound(id types.CommitID) error {
	return types.Error{
		Op:     "resolve",
		URL:    s.repoURL,
		Kind:   types.KindNotFound,
		Reason: fmt.Sprintf("commit %s not found", id.ShortID()),
	}
}

func (s *Snapshot) error(op, reason string, err error) error {
	return types.Error{
		Op:     op,
		URL:    s.repoURL,
		Kind:   types.KindOther,
		Reason: reason,
		Cause:  err,
	}
}

// toHash converts a commit id to a go-git hash.
func toHash(id types.CommitID) (plumbing.Hash, bool) {
	var hash plumbing.Hash
	if len(id) != len(hash) {
		return hash, false
	}

	copy(hash[:], id)

	return hash, true
}

func diffTrees(ctx context.Context, from, to *object.Tree) ([]string, error) {
	changes, err := object.DiffTreeWithOptions(ctx, from, to, nil)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(changes))
	for _, change := range changes {
		if change.From.Name != "" {
			paths = append(paths, change.From.Name)
		}

		if change.To.Name != "" {
			paths = append(paths, change.To.Name)
		}
	}

	slices.Sort(paths)

	return slices.Compact(paths), nil
}

func allFiles(tree *object.Tree) ([]string, error) {
	var paths []string

	err := tree.Files().ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	slices.Sort(paths)

	return paths, nil
}

package watch

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/nicholas-fedor/gitwatch/pkg/metrics"
	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

var errFakeUnreachable = types.Error{
	Op:     "clone",
	URL:    "https://example.com/repo.git",
	Kind:   types.KindNetworkUnreachable,
	Reason: "remote unreachable",
	Cause:  errors.New("dial tcp: connection refused"),
}

// fakeCommit is a commit in a fakeRepo. Files are the paths the commit touches.
type fakeCommit struct {
	parent string
	files  []string
}

// fakeRepo is an in-memory remote. Commit ids are the commit names as bytes.
type fakeRepo struct {
	mu sync.Mutex

	commits    map[string]fakeCommit
	heads      map[string]string
	cloneErr   error
	listErr    error
	shallowGap map[string]bool // commits missing from snapshots

	clones  int
	closed  int
	listed  int
	shallow []bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		commits:    make(map[string]fakeCommit),
		heads:      make(map[string]string),
		shallowGap: make(map[string]bool),
	}
}

// commit adds a commit on top of the branch head and moves the branch.
func (r *fakeRepo) commit(branch, name string, files ...string) *fakeRepo {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commits[name] = fakeCommit{parent: r.heads[branch], files: files}
	r.heads[branch] = name

	return r
}

// branch creates a branch pointing at an existing commit.
func (r *fakeRepo) branch(branch, at string) *fakeRepo {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.heads[branch] = at

	return r
}

func (r *fakeRepo) setCloneErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cloneErr = err
}

func (r *fakeRepo) hide(commit string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.shallowGap[commit] = true
}

func (r *fakeRepo) stats() (clones, closed, listed int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.clones, r.closed, r.listed
}

func (r *fakeRepo) Clone(
	ctx context.Context,
	_ types.RepositoryLocation,
	_ types.Credential,
	shallow bool,
) (types.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cloneErr != nil {
		return nil, r.cloneErr
	}

	r.clones++
	r.shallow = append(r.shallow, shallow)

	commits := make(map[string]fakeCommit, len(r.commits))
	for name, c := range r.commits {
		if !r.shallowGap[name] {
			commits[name] = fakeCommit{parent: c.parent, files: slices.Clone(c.files)}
		}
	}

	return &fakeSnapshot{repo: r, commits: commits, heads: maps.Clone(r.heads)}, nil
}

func (r *fakeRepo) ListHeads(
	_ context.Context,
	_ types.RepositoryLocation,
	_ types.Credential,
	filter types.BranchFilter,
) (map[string]types.CommitID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listed++

	if r.listErr != nil {
		return nil, r.listErr
	}

	heads := make(map[string]types.CommitID)
	for branch, name := range r.heads {
		if filter == nil || filter(branch) {
			heads[branch] = id(name)
		}
	}

	return heads, nil
}

// cloneOnly hides the HeadLister implementation of a provider.
type cloneOnly struct {
	types.Provider
}

type fakeSnapshot struct {
	repo    *fakeRepo
	commits map[string]fakeCommit
	heads   map[string]string
}

func id(name string) types.CommitID {
	return types.CommitID(name)
}

func (s *fakeSnapshot) BranchHeads(
	_ context.Context,
	filter types.BranchFilter,
) (types.BranchHeads, error) {
	heads := make(types.BranchHeads)

	for branch, name := range s.heads {
		if filter == nil || filter(branch) {
			heads[branch] = types.CommitMeta{ID: id(name), Message: "commit " + name}
		}
	}

	return heads, nil
}

func (s *fakeSnapshot) Commit(_ context.Context, commitID types.CommitID) (types.CommitMeta, error) {
	name := string(commitID)
	if _, ok := s.commits[name]; !ok {
		return types.CommitMeta{}, types.Error{Op: "resolve", Kind: types.KindNotFound, Reason: name}
	}

	return types.CommitMeta{ID: id(name), Message: "commit " + name}, nil
}

func (s *fakeSnapshot) ChangedPathsForCommit(
	_ context.Context,
	commitID types.CommitID,
) ([]string, error) {
	c, ok := s.commits[string(commitID)]
	if !ok {
		return nil, types.Error{Op: "diff", Kind: types.KindNotFound}
	}

	return sortedSet(c.files), nil
}

func (s *fakeSnapshot) ChangedPathsBetween(
	_ context.Context,
	from, to types.CommitID,
) ([]string, bool, error) {
	if _, ok := s.commits[string(from)]; !ok {
		return nil, false, nil
	}

	var files []string

	for cur := string(to); cur != string(from); {
		c, ok := s.commits[cur]
		if !ok || cur == "" {
			return nil, false, nil
		}

		files = append(files, c.files...)
		cur = c.parent
	}

	return sortedSet(files), true, nil
}

func (s *fakeSnapshot) Close() error {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	s.repo.closed++

	return nil
}

func sortedSet(paths []string) []string {
	out := slices.Clone(paths)
	slices.Sort(out)

	return slices.Compact(out)
}

// recorder collects change callbacks.
type recorder struct {
	mu     sync.Mutex
	states []types.RepoState
}

func (r *recorder) onChange(state types.RepoState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states = append(r.states, state)
}

func (r *recorder) calls() []types.RepoState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.states)
}

// metricsSink records observation metrics synchronously.
type metricsSink struct {
	mu      sync.Mutex
	metrics []*metrics.Metric
}

func (m *metricsSink) RegisterObservation(metric *metrics.Metric) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics = append(m.metrics, metric)
}

func (m *metricsSink) all() []*metrics.Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.metrics)
}

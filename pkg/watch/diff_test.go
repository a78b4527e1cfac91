package watch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/nicholas-fedor/gitwatch/pkg/filters"
	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

func heads(pairs ...string) types.BranchHeads {
	out := make(types.BranchHeads, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i]] = types.CommitMeta{ID: id(pairs[i+1])}
	}

	return out
}

func TestClassify(t *testing.T) {
	previous := &types.RepoState{BranchHeads: heads("main", "c1", "dev", "c2")}
	current := heads("main", "c1", "dev", "c3", "feature", "c4")

	got := Classify(previous, current)

	require.Len(t, got, 3)
	assert.Equal(t, types.ChangeUnchanged, got["main"].Kind)
	assert.Equal(t, types.ChangeUpdated, got["dev"].Kind)
	assert.True(t, got["dev"].Prior.Equal(id("c2")))
	assert.True(t, got["dev"].Current.ID.Equal(id("c3")))
	assert.Equal(t, types.ChangeNew, got["feature"].Kind)
	assert.Nil(t, got["feature"].Prior)
}

func TestClassify_NoPrevious(t *testing.T) {
	got := Classify(nil, heads("main", "c1", "dev", "c2"))

	for branch, change := range got {
		assert.Equal(t, types.ChangeNew, change.Kind, branch)
	}
}

func TestDiff_Scenarios(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo().
		commit("main", "c1", "README.md", "main.go").
		commit("dev", "c2", "dev.go")

	// First observation: every branch is new and reports its own commit.
	snap, err := repo.Clone(ctx, types.RepositoryLocation{}, nil, false)
	require.NoError(t, err)

	first, err := Diff(ctx, snap, nil, heads("main", "c1", "dev", "c2"), nil)
	require.NoError(t, err)
	assert.Equal(t, types.PathChangeSet{
		"main": {"README.md", "main.go"},
		"dev":  {"dev.go"},
	}, first.PathChanges)
	assert.Len(t, first.Changes, 2)
	assert.Equal(t, "dev", first.Changes[0].Branch)

	previous := &types.RepoState{
		BranchHeads: heads("main", "c1", "dev", "c2"),
		PathChanges: first.PathChanges,
	}

	// Second observation: dev advanced, main unchanged.
	repo.commit("dev", "c3", "dev.go", "docs/dev.md")

	snap, err = repo.Clone(ctx, types.RepositoryLocation{}, nil, false)
	require.NoError(t, err)

	second, err := Diff(ctx, snap, previous, heads("main", "c1", "dev", "c3"), nil)
	require.NoError(t, err)
	assert.Equal(t, types.PathChangeSet{"dev": {"dev.go", "docs/dev.md"}}, second.PathChanges)
	require.Len(t, second.Changes, 1)
	assert.Equal(t, types.ChangeUpdated, second.Changes[0].Kind)

	// Third observation: a new branch reports its head commit only, not a range.
	repo.branch("feature", "c3").commit("feature", "c4", "feature.go")

	snap, err = repo.Clone(ctx, types.RepositoryLocation{}, nil, false)
	require.NoError(t, err)

	previous = &types.RepoState{BranchHeads: heads("main", "c1", "dev", "c3")}

	third, err := Diff(ctx, snap, previous, heads("main", "c1", "dev", "c3", "feature", "c4"), nil)
	require.NoError(t, err)
	assert.Equal(t, types.PathChangeSet{"feature": {"feature.go"}}, third.PathChanges)
	require.Len(t, third.Changes, 1)
	assert.Equal(t, types.ChangeNew, third.Changes[0].Kind)
}

func TestDiff_UnresolvableRange(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo().
		commit("main", "c1", "a.go").
		commit("main", "c2", "b.go").
		commit("dev", "d1", "d.go").
		commit("dev", "d2", "e.go")
	repo.hide("c1")

	snap, err := repo.Clone(ctx, types.RepositoryLocation{}, nil, true)
	require.NoError(t, err)

	previous := &types.RepoState{BranchHeads: heads("main", "c1", "dev", "d1")}

	result, err := Diff(ctx, snap, previous, heads("main", "c2", "dev", "d2"), nil)
	require.NoError(t, err)

	assert.Equal(t, types.PathChangeSet{"dev": {"e.go"}}, result.PathChanges)
	assert.Equal(t, []string{"main"}, result.Unresolved)
	assert.Len(t, result.Changes, 2)
}

func TestDiff_PathFilter(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo().
		commit("main", "c1", "docs/a.md", "main.go").
		commit("dev", "d1", "internal/x.go")

	snap, err := repo.Clone(ctx, types.RepositoryLocation{}, nil, false)
	require.NoError(t, err)

	pathFilter, err := filters.NewPathFilter([]string{"docs"})
	require.NoError(t, err)

	result, err := Diff(ctx, snap, nil, heads("main", "c1", "dev", "d1"), pathFilter)
	require.NoError(t, err)

	assert.Equal(t, types.PathChangeSet{"main": {"docs/a.md"}}, result.PathChanges)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, "main", result.Changes[0].Branch)
}

func TestDiff_EmptyCommitKeepsEntry(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo().commit("main", "c1")

	snap, err := repo.Clone(ctx, types.RepositoryLocation{}, nil, false)
	require.NoError(t, err)

	result, err := Diff(ctx, snap, nil, heads("main", "c1"), nil)
	require.NoError(t, err)

	require.Contains(t, result.PathChanges, "main")
	assert.Empty(t, result.PathChanges["main"])
	assert.NotNil(t, result.PathChanges["main"])
}

func TestDiff_ProviderError(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo().commit("main", "c1", "a.go")

	snap, err := repo.Clone(ctx, types.RepositoryLocation{}, nil, false)
	require.NoError(t, err)

	// A head the snapshot does not know is a provider failure, not a partial diff.
	_, err = Diff(ctx, snap, nil, heads("main", "missing"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

// linearRepo builds a repository with one linear history per branch.
func linearRepo(t *rapid.T) (*fakeRepo, map[string][]string) {
	branches := rapid.SliceOfNDistinct(
		rapid.StringMatching(`[a-z]{1,6}`),
		1,
		5,
		func(s string) string { return s },
	).Draw(t, "branches")

	repo := newFakeRepo()
	history := make(map[string][]string, len(branches))

	for _, branch := range branches {
		n := rapid.IntRange(1, 4).Draw(t, "commits-"+branch)
		for i := range n {
			name := fmt.Sprintf("%s-%d", branch, i)
			file := rapid.SampledFrom([]string{"a.go", "b.go", "docs/c.md", "d/e/f.txt"}).
				Draw(t, "file-"+name)
			repo.commit(branch, name, file)
			history[branch] = append(history[branch], name)
		}
	}

	return repo, history
}

func TestProperty_DiffIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		repo, history := linearRepo(t)

		previousHeads := make(types.BranchHeads)
		currentHeads := make(types.BranchHeads)

		for branch, commits := range history {
			if rapid.Bool().Draw(t, "known-"+branch) {
				at := rapid.IntRange(0, len(commits)-1).Draw(t, "prior-"+branch)
				previousHeads[branch] = types.CommitMeta{ID: id(commits[at])}
			}

			currentHeads[branch] = types.CommitMeta{ID: id(commits[len(commits)-1])}
		}

		previous := &types.RepoState{BranchHeads: previousHeads}

		snap, err := repo.Clone(ctx, types.RepositoryLocation{}, nil, false)
		if err != nil {
			t.Fatal(err)
		}

		first, err := Diff(ctx, snap, previous, currentHeads, nil)
		if err != nil {
			t.Fatal(err)
		}

		second, err := Diff(ctx, snap, previous, currentHeads, nil)
		if err != nil {
			t.Fatal(err)
		}

		assert.Equal(t, first, second)

		for branch, change := range Classify(previous, currentHeads) {
			_, reported := first.PathChanges[branch]

			switch change.Kind {
			case types.ChangeUnchanged:
				if reported {
					t.Fatalf("unchanged branch %s reported path changes", branch)
				}
			case types.ChangeUpdated, types.ChangeNew:
				if !reported {
					t.Fatalf("changed branch %s missing from path changes", branch)
				}
			}
		}

		for branch := range first.PathChanges {
			if _, ok := currentHeads[branch]; !ok {
				t.Fatalf("path changes key %s not in branch heads", branch)
			}
		}
	})
}

func TestProperty_NoPreviousMeansAllNew(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfNDistinct(
			rapid.StringMatching(`[a-z/]{1,10}`),
			0,
			8,
			func(s string) string { return s },
		).Draw(t, "branches")

		current := make(types.BranchHeads, len(names))
		for i, name := range names {
			current[name] = types.CommitMeta{ID: types.CommitID{byte(i + 1)}}
		}

		for branch, change := range Classify(nil, current) {
			if change.Kind != types.ChangeNew {
				t.Fatalf("branch %s classified %s without previous state", branch, change.Kind)
			}
		}
	})
}

// Package filters provides branch and path filtering for gitwatch.
// It decides which remote branches an observation reads and which changed
// paths are reported for them.
//
// Key components:
//   - FilterByExcludedBranches: Drops branches by exact name or full-match regex.
//   - BuildBranchFilter: Combines branch filters and describes them for logs.
//   - PathFilter: Keeps paths under a directory prefix or matching a glob.
//
// Usage example:
//
//	filter, desc := filters.BuildBranchFilter([]string{"gh-pages"})
//	heads, _ := snapshot.BranchHeads(ctx, filter)
//	logrus.Info(desc)
//
// The package uses logrus for logging filter decisions.
package filters

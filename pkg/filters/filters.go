// Package filters provides branch and path filtering for gitwatch.
package filters

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// Predefined error variables for consistent error handling.
var (
	ErrEmptyBranchName = errors.New("branch filter contains an empty name")
	ErrEmptyPattern    = errors.New("path filter contains an empty pattern")
	ErrBadPathPattern  = errors.New("invalid path pattern")
)

// NoFilter allows all branches through.
//
// Returns:
//   - bool: Always true.
func NoFilter(string) bool {
	return true
}

// FilterByExcludedBranches rejects branches matching any of the given names.
//
// A name matches a branch exactly. A name using regular expression operators
// (any of *+?()[]{}|^$\) also matches as an expression covering the whole
// branch name. A dot alone does not make a pattern, so "release-1.0" excludes
// only that branch. Names that are not valid expressions only match exactly.
//
// Parameters:
//   - excluded: Branch names or patterns to exclude.
//   - baseFilter: Base filter to chain.
//
// Returns:
//   - types.BranchFilter: Filter excluding the names and applying the base filter.
func FilterByExcludedBranches(
	excluded []string,
	baseFilter types.BranchFilter,
) types.BranchFilter {
	if len(excluded) == 0 {
		return baseFilter
	}

	patterns := compileBranchPatterns(excluded)

	return func(branch string) bool {
		for i, name := range excluded {
			if name == branch {
				logrus.WithField("branch", branch).Debug("Branch excluded by name")

				return false
			}

			if patterns[i] != nil && patterns[i].MatchString(branch) {
				logrus.WithFields(logrus.Fields{
					"branch":  branch,
					"pattern": name,
				}).Debug("Branch excluded by pattern")

				return false
			}
		}

		return baseFilter(branch)
	}
}

// patternOperators are the characters that mark a branch filter entry as an expression.
const patternOperators = `*+?()[]{}|^$\`

// compileBranchPatterns anchors each expression entry as a full-match pattern.
// Plain names get a nil entry.
func compileBranchPatterns(names []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(names))

	for i, name := range names {
		if !strings.ContainsAny(name, patternOperators) {
			continue
		}

		re, err := regexp.Compile("^(?:" + name + ")$")
		if err != nil {
			logrus.WithError(err).
				WithField("name", name).
				Debug("Branch filter entry is not a pattern, matching exactly")

			continue
		}

		patterns[i] = re
	}

	return patterns
}

// ValidateBranchNames rejects empty entries in a branch filter.
func ValidateBranchNames(names []string) error {
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: entry %d", ErrEmptyBranchName, i)
		}
	}

	return nil
}

// BuildBranchFilter creates the branch filter and a description of it.
//
// Parameters:
//   - excluded: Branch names or patterns to exclude.
//
// Returns:
//   - types.BranchFilter: Combined filter function.
//   - string: Description of the filter.
func BuildBranchFilter(excluded []string) (types.BranchFilter, string) {
	filter := FilterByExcludedBranches(excluded, NoFilter)

	desc := "Watching all branches"
	if len(excluded) > 0 {
		desc = `Watching all branches except "` + strings.Join(excluded, `" or "`) + `"`
	}

	logrus.WithField("filter_desc", desc).Debug("Branch filter built")

	return filter, desc
}

// PathFilter keeps repository paths matching at least one pattern.
//
// A pattern matches a path when it names the path or one of its parent
// directories, either literally or as a path.Match glob.
type PathFilter struct {
	patterns []string
}

// NewPathFilter validates patterns and builds a filter.
//
// Parameters:
//   - patterns: Directory prefixes or globs, relative to the repository root.
//
// Returns:
//   - *PathFilter: Filter, or nil when no patterns are given.
//   - error: Non-nil if a pattern is empty or malformed.
func NewPathFilter(patterns []string) (*PathFilter, error) {
	if len(patterns) == 0 {
		return nil, nil //nolint:nilnil // No filter configured
	}

	cleaned := make([]string, 0, len(patterns))

	for _, pattern := range patterns {
		p := strings.Trim(strings.TrimSpace(pattern), "/")
		if p == "" {
			return nil, ErrEmptyPattern
		}

		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrBadPathPattern, pattern, err)
		}

		cleaned = append(cleaned, p)
	}

	return &PathFilter{patterns: cleaned}, nil
}

// Patterns returns a copy of the configured patterns.
func (f *PathFilter) Patterns() []string {
	if f == nil {
		return nil
	}

	return append([]string(nil), f.patterns...)
}

// Match reports whether p is selected by the filter. A nil filter matches everything.
func (f *PathFilter) Match(p string) bool {
	if f == nil {
		return true
	}

	for candidate := p; isRelative(candidate); candidate = path.Dir(candidate) {
		for _, pattern := range f.patterns {
			if pattern == candidate {
				return true
			}

			if ok, _ := path.Match(pattern, candidate); ok {
				return true
			}
		}
	}

	return false
}

func isRelative(p string) bool {
	return p != "" && p != "." && p != "/"
}

// Apply returns the paths selected by the filter, preserving order.
func (f *PathFilter) Apply(paths []string) []string {
	if f == nil {
		return paths
	}

	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		if f.Match(p) {
			kept = append(kept, p)
		}
	}

	logrus.WithFields(logrus.Fields{
		"patterns": f.patterns,
		"total":    len(paths),
		"kept":     len(kept),
	}).Trace("Applied path filter")

	return kept
}

// String describes the filter.
func (f *PathFilter) String() string {
	if f == nil {
		return "all paths"
	}

	return strings.Join(f.patterns, ", ")
}

package watch

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron"

	"github.com/nicholas-fedor/gitwatch/pkg/filters"
	"github.com/nicholas-fedor/gitwatch/pkg/git"
	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// DefaultPollInterval is the wait between observations when none is configured.
const DefaultPollInterval = 5 * time.Second

// Config is the immutable configuration of a watcher.
//
// The With methods return a modified copy and never change the receiver.
type Config struct {
	location        types.RepositoryLocation
	credential      types.Credential
	excludeBranches []string
	pathPatterns    []string
	shallow         bool
	pollInterval    time.Duration
	schedule        string
	startBranch     string
	startCommit     string
	probe           bool
}

// NewConfig parses rawURL and returns a configuration with default options.
//
// A password embedded in the URL becomes the credential and is removed from the location.
//
// Parameters:
//   - rawURL: Repository URL, scp-like address or local path.
//
// Returns:
//   - Config: Configuration for the repository.
//   - error: Wrapped ErrInvalidLocation if the location cannot be parsed.
func NewConfig(rawURL string) (Config, error) {
	location, embedded, err := git.ParseLocation(rawURL)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}

	return Config{
		location:     location,
		credential:   embedded.Credential(),
		pollInterval: DefaultPollInterval,
	}, nil
}

// WithCredential sets the credential used for every clone.
func (c Config) WithCredential(cred types.Credential) Config {
	c.credential = cred

	return c
}

// WithBranchFilter excludes the named branches, by exact name or, for entries
// using expression operators, as a full-match regular expression.
func (c Config) WithBranchFilter(excluded ...string) Config {
	c.excludeBranches = slices.Clone(excluded)

	return c
}

// WithPathFilter limits reported path changes to the given prefixes or globs.
func (c Config) WithPathFilter(patterns ...string) Config {
	c.pathPatterns = slices.Clone(patterns)

	return c
}

// WithShallowClone selects single-commit-depth clones.
func (c Config) WithShallowClone(shallow bool) Config {
	c.shallow = shallow

	return c
}

// WithPollInterval sets the fixed wait between observations.
func (c Config) WithPollInterval(interval time.Duration) Config {
	c.pollInterval = interval

	return c
}

// WithSchedule replaces the fixed interval with a cron expression.
//
// The expression uses six fields with seconds first, or a descriptor such as "@hourly".
// Setting a schedule clears the poll interval.
func (c Config) WithSchedule(spec string) Config {
	c.schedule = strings.TrimSpace(spec)
	if c.schedule != "" {
		c.pollInterval = 0
	}

	return c
}

// WithStart anchors the first state at branch, optionally at a specific commit.
//
// An empty commit anchors at the branch head.
func (c Config) WithStart(branch, commit string) Config {
	c.startBranch = branch
	c.startCommit = commit

	return c
}

// WithRemoteProbe enables listing remote heads before cloning, skipping the clone
// when no observed head moved.
func (c Config) WithRemoteProbe(probe bool) Config {
	c.probe = probe

	return c
}

// Location returns the repository location.
func (c Config) Location() types.RepositoryLocation { return c.location }

// Credential returns the configured credential, or nil.
func (c Config) Credential() types.Credential { return c.credential }

// ExcludedBranches returns a copy of the branch filter.
func (c Config) ExcludedBranches() []string { return slices.Clone(c.excludeBranches) }

// PathPatterns returns a copy of the path filter.
func (c Config) PathPatterns() []string { return slices.Clone(c.pathPatterns) }

// Shallow reports whether clones are shallow.
func (c Config) Shallow() bool { return c.shallow }

// PollInterval returns the fixed poll interval, zero when a schedule is used.
func (c Config) PollInterval() time.Duration { return c.pollInterval }

// Schedule returns the cron expression, if any.
func (c Config) Schedule() string { return c.schedule }

// Start returns the configured start branch and commit.
func (c Config) Start() (string, string) { return c.startBranch, c.startCommit }

// RemoteProbe reports whether the remote probe is enabled.
func (c Config) RemoteProbe() bool { return c.probe }

// Validate checks the configuration for errors.
//
// Returns:
//   - error: The first configuration error found, or nil.
func (c Config) Validate() error {
	if c.location.IsZero() {
		return fmt.Errorf("%w: location not set", ErrInvalidLocation)
	}

	if c.schedule != "" && c.pollInterval != 0 {
		return ErrScheduleConflict
	}

	if c.schedule == "" && c.pollInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, c.pollInterval)
	}

	if c.schedule != "" {
		if _, err := cron.Parse(c.schedule); err != nil {
			return fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, c.schedule, err)
		}
	}

	if err := filters.ValidateBranchNames(c.excludeBranches); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}

	if _, err := filters.NewPathFilter(c.pathPatterns); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}

	if c.startCommit != "" {
		if c.startBranch == "" {
			return ErrMissingBranch
		}

		if _, err := types.ParseCommitID(c.startCommit); err != nil {
			return fmt.Errorf("invalid start commit: %w", err)
		}
	}

	return nil
}

// waitSchedule returns the wait schedule described by the configuration.
func (c Config) waitSchedule() (cron.Schedule, error) {
	if c.schedule == "" {
		return fixedSchedule{interval: c.pollInterval}, nil
	}

	sched, err := cron.Parse(c.schedule)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, c.schedule, err)
	}

	return sched, nil
}

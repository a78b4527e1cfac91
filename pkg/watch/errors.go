package watch

import "errors"

// Configuration errors, reported before any observation runs.
var (
	ErrInvalidLocation  = errors.New("invalid repository location")
	ErrInvalidInterval  = errors.New("poll interval must be positive")
	ErrScheduleConflict = errors.New("poll interval and schedule are mutually exclusive")
	ErrInvalidSchedule  = errors.New("invalid schedule expression")
	ErrInvalidFilter    = errors.New("invalid filter")
	ErrMissingBranch    = errors.New("a start commit requires a start branch")
	ErrNilProvider      = errors.New("repository provider is required")
)

// Start anchor errors, reported by NewHandler.
var (
	ErrBranchNotFound = errors.New("branch not found")
	ErrCommitNotFound = errors.New("commit not found")
)

// Usage errors.
var (
	// ErrNoState is returned when the current state is requested before any observation.
	ErrNoState = errors.New("no observation has been made")
	// ErrBusy is returned when an observation or watch loop is already running on the handler.
	ErrBusy = errors.New("handler is busy")
)

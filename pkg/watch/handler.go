package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nicholas-fedor/gitwatch/pkg/filters"
	"github.com/nicholas-fedor/gitwatch/pkg/metrics"
	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// tracerName identifies spans created by this package.
const tracerName = "github.com/nicholas-fedor/gitwatch/pkg/watch"

// MetricsRecorder receives one metric per observation cycle.
type MetricsRecorder interface {
	RegisterObservation(metric *metrics.Metric)
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics records every observation cycle on recorder.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(h *Handler) {
		h.metrics = recorder
	}
}

// WithClock sets the source of observation timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// WithTracer sets the tracer used for observation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(h *Handler) {
		h.tracer = tracer
	}
}

// WithTrigger wakes the watch loop for an immediate observation whenever a
// value is received on trigger.
func WithTrigger(trigger <-chan struct{}) Option {
	return func(h *Handler) {
		h.trigger = trigger
	}
}

// Handler watches one repository.
//
// A Handler runs at most one observation at a time. Observe, Watch and
// WatchAsync return ErrBusy while another of them is in flight, while
// CurrentState may be called concurrently with all of them.
type Handler struct {
	id           string
	cfg          Config
	provider     types.Provider
	branchFilter types.BranchFilter
	filterDesc   string
	pathFilter   *filters.PathFilter
	schedule     cron.Schedule

	now     func() time.Time
	metrics MetricsRecorder
	tracer  trace.Tracer
	trigger <-chan struct{}

	lock chan bool

	mu    sync.RWMutex
	state *types.RepoState
}

// NewHandler validates cfg and creates a handler.
//
// When cfg has a start branch the handler clones once and seeds its state with
// that branch anchored at the start commit, or at the branch head when no commit
// is given. The seeded path changes are the anchor commit's own diff.
//
// Parameters:
//   - ctx: Context for the optional seeding clone.
//   - cfg: Watcher configuration.
//   - provider: Repository provider.
//   - opts: Optional handler settings.
//
// Returns:
//   - *Handler: Ready handler.
//   - error: Configuration error, ErrBranchNotFound, ErrCommitNotFound or a provider error.
func NewHandler(
	ctx context.Context,
	cfg Config,
	provider types.Provider,
	opts ...Option,
) (*Handler, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pathFilter, err := filters.NewPathFilter(cfg.pathPatterns)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}

	schedule, err := cfg.waitSchedule()
	if err != nil {
		return nil, err
	}

	branchFilter, filterDesc := filters.BuildBranchFilter(cfg.excludeBranches)
	if patterns := pathFilter.Patterns(); len(patterns) > 0 {
		filterDesc += `, reporting changes under "` + strings.Join(patterns, `" or "`) + `"`
	}

	h := &Handler{
		id:           uuid.NewString(),
		cfg:          cfg,
		provider:     provider,
		branchFilter: branchFilter,
		filterDesc:   filterDesc,
		pathFilter:   pathFilter,
		schedule:     schedule,
		now:          time.Now,
		tracer:       otel.Tracer(tracerName),
		lock:         make(chan bool, 1),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.lock <- true

	if cfg.startBranch != "" {
		if err := h.seed(ctx); err != nil {
			return nil, err
		}
	}

	h.log().WithFields(logrus.Fields{
		"shallow": cfg.shallow,
		"auth":    types.RedactCredential(cfg.credential),
		"filter":  filterDesc,
		"paths":   pathFilter.String(),
	}).Debug("Created watch handler")

	return h, nil
}

// ID returns the handler's unique id, used to correlate log entries.
func (h *Handler) ID() string {
	return h.id
}

// Config returns the handler's configuration.
func (h *Handler) Config() Config {
	return h.cfg
}

// FilterDescription describes the branch and path filters for startup logging.
func (h *Handler) FilterDescription() string {
	return h.filterDesc
}

// NextRun returns the next scheduled observation after t.
func (h *Handler) NextRun(t time.Time) time.Time {
	return h.schedule.Next(t)
}

// CurrentState returns a copy of the most recent state.
//
// Returns:
//   - types.RepoState: Deep copy of the current state.
//   - error: ErrNoState before the first observation.
func (h *Handler) CurrentState() (types.RepoState, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.state == nil {
		return types.RepoState{}, ErrNoState
	}

	return h.state.Clone(), nil
}

// HasState reports whether an observation has been stored.
func (h *Handler) HasState() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.state != nil
}

// previousState returns the stored state without copying. Callers must hold the lock token.
func (h *Handler) previousState() *types.RepoState {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.state
}

// store replaces the current state.
func (h *Handler) store(state types.RepoState) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = &state
}

// acquire takes the handler's lock token without blocking.
func (h *Handler) acquire() (func(), error) {
	select {
	case v := <-h.lock:
		return func() { h.lock <- v }, nil
	default:
		return nil, ErrBusy
	}
}

// observedAt returns the timestamp for a new state, never earlier than the previous one.
func (h *Handler) observedAt(previous *types.RepoState) time.Time {
	now := h.now()
	if previous != nil && now.Before(previous.ObservedAt) {
		return previous.ObservedAt
	}

	return now
}

func (h *Handler) log() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"repo":    h.cfg.location.String(),
		"watcher": h.id,
	})
}

// seed anchors the first state at the configured start branch and commit.
func (h *Handler) seed(ctx context.Context) error {
	branch, commit := h.cfg.Start()
	clog := h.log().WithFields(logrus.Fields{"branch": branch, "commit": commit})

	clog.Debug("Seeding state from start anchor")

	snap, err := h.provider.Clone(ctx, h.cfg.location, h.cfg.credential, h.cfg.shallow)
	if err != nil {
		return fmt.Errorf("failed to acquire snapshot: %w", err)
	}
	defer h.closeSnapshot(snap)

	heads, err := snap.BranchHeads(ctx, func(name string) bool {
		return name == branch && h.branchFilter(name)
	})
	if err != nil {
		return fmt.Errorf("failed to read branch heads: %w", err)
	}

	head, ok := heads[branch]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBranchNotFound, branch)
	}

	if commit != "" {
		id, err := types.ParseCommitID(commit)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCommitNotFound, err)
		}

		head, err = snap.Commit(ctx, id)
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrCommitNotFound, commit)
		}

		if err != nil {
			return fmt.Errorf("failed to resolve start commit: %w", err)
		}
	}

	paths, err := snap.ChangedPathsForCommit(ctx, head.ID)
	if err != nil {
		return fmt.Errorf("failed to diff start commit: %w", err)
	}

	state := types.RepoState{
		ObservedAt:  h.observedAt(nil),
		BranchHeads: types.BranchHeads{branch: head},
		PathChanges: types.PathChangeSet{},
	}

	if paths = h.pathFilter.Apply(paths); len(paths) > 0 || h.pathFilter == nil {
		if paths == nil {
			paths = []string{}
		}

		state.PathChanges[branch] = paths
	}

	h.store(state)

	clog.WithField("anchor", head.ID.ShortID()).Info("Seeded state from start anchor")

	return nil
}

func (h *Handler) closeSnapshot(snap types.Snapshot) {
	if err := snap.Close(); err != nil {
		h.log().WithError(err).Warn("Failed to release repository snapshot")
	}
}

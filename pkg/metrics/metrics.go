package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

var metrics *Metrics

// Metric holds data points from one observation cycle.
type Metric struct {
	Branches     int       // Number of branches in the observed state.
	Changes      int       // Number of branches classified new or updated.
	PartialDiffs int       // Number of branches whose range diff could not be resolved.
	Failed       bool      // The cycle ended in an error.
	CloneSkipped bool      // The remote probe found no movement and the clone was skipped.
	ObservedAt   time.Time // Observation time of the resulting state.
}

// Metrics handles processing and exposing observation metrics.
type Metrics struct {
	channel         chan *Metric       // Channel for queuing metrics.
	branches        prometheus.Gauge   // Gauge for observed branches.
	changes         prometheus.Gauge   // Gauge for changed branches in the last cycle.
	partialDiffs    prometheus.Gauge   // Gauge for unresolvable ranges in the last cycle.
	lastObservation prometheus.Gauge   // Unix time of the last successful observation.
	total           prometheus.Counter // Counter for total observation cycles.
	failed          prometheus.Counter // Counter for failed cycles.
	changesTotal    prometheus.Counter // Counter for total branch changes.
	partialTotal    prometheus.Counter // Counter for total unresolvable ranges.
	clonesSkipped   prometheus.Counter // Counter for clones skipped by the remote probe.
	dropped         prometheus.Counter // Counter for dropped metrics.
	stopCh          chan struct{}      // Channel for shutdown signaling.
	shutdownOnce    sync.Once          // Ensures shutdown is called only once.
	//nolint:containedctx
	ctx    context.Context    // Context for cancellation.
	cancel context.CancelFunc // Cancel function for the context.
}

// NewWithRegistry creates a new Metrics handler with a custom Prometheus registry.
//
// Parameters:
//   - registry: Prometheus registerer to use for metric registration.
//
// Returns:
//   - (*Metrics, error): Metrics handler with Prometheus metrics and goroutine, or an error if registration fails.
func NewWithRegistry(registry prometheus.Registerer) (*Metrics, error) {
	// channelBufferSize sets the metrics channel capacity.
	const channelBufferSize = 10

	ctx, cancel := context.WithCancel(context.Background())

	metrics := &Metrics{
		branches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gitwatch_branches_observed",
			Help: "Number of branches in the most recent observation",
		}),
		changes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gitwatch_branches_changed",
			Help: "Number of new or updated branches found by the last observation",
		}),
		partialDiffs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gitwatch_partial_diffs",
			Help: "Number of branches whose change range could not be resolved in the last observation",
		}),
		lastObservation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gitwatch_last_observation_timestamp_seconds",
			Help: "Unix time of the last successful observation",
		}),
		total: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gitwatch_observations_total",
			Help: "Number of observation cycles since gitwatch started",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gitwatch_observations_failed_total",
			Help: "Number of failed observation cycles since gitwatch started",
		}),
		changesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gitwatch_branch_changes_total",
			Help: "Total number of new or updated branches reported",
		}),
		partialTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gitwatch_partial_diffs_total",
			Help: "Total number of unresolvable change ranges",
		}),
		clonesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gitwatch_clones_skipped_total",
			Help: "Number of clones skipped because no remote head moved",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gitwatch_metrics_dropped_total",
			Help: "Number of metrics dropped due to full channel",
		}),
		channel: make(chan *Metric, channelBufferSize),
		stopCh:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	metricsList := []prometheus.Collector{
		metrics.branches,
		metrics.changes,
		metrics.partialDiffs,
		metrics.lastObservation,
		metrics.total,
		metrics.failed,
		metrics.changesTotal,
		metrics.partialTotal,
		metrics.clonesSkipped,
		metrics.dropped,
	}
	for _, m := range metricsList {
		if err := registry.Register(m); err != nil {
			cancel()

			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	go metrics.HandleUpdate()

	return metrics, nil
}

// NewMetric creates a Metric from an observed state.
//
// Parameters:
//   - state: State produced by the cycle.
//   - changes: Number of branches that fired.
//   - partialDiffs: Number of branches with an unresolvable range.
//
// Returns:
//   - *Metric: New metric instance.
func NewMetric(state types.RepoState, changes, partialDiffs int) *Metric {
	return &Metric{
		Branches:     len(state.BranchHeads),
		Changes:      changes,
		PartialDiffs: partialDiffs,
		ObservedAt:   state.ObservedAt,
	}
}

// NewFailedMetric creates a Metric for a cycle that ended in an error.
func NewFailedMetric() *Metric {
	return &Metric{Failed: true}
}

// QueueIsEmpty checks if the metrics channel is empty.
//
// Returns:
//   - bool: True if empty, false otherwise.
func (m *Metrics) QueueIsEmpty() bool {
	return len(m.channel) == 0
}

// Register attempts to enqueue a metric for processing.
// If the channel is full, the metric is dropped and the dropped counter is incremented.
//
// Parameters:
//   - metric: Metric to register.
func (m *Metrics) Register(metric *Metric) {
	if metric == nil {
		return
	}

	select {
	case m.channel <- metric:
	default:
		m.dropped.Inc()
	}
}

// RegisterObservation enqueues an observation metric.
//
// Parameters:
//   - metric: Metric to register.
func (m *Metrics) RegisterObservation(metric *Metric) {
	m.Register(metric)
}

// Default initializes or returns the singleton Metrics handler. It panics on registration failure, such as duplicate registration against the default registry.
//
// Returns:
//   - *Metrics: Metrics handler with Prometheus metrics and goroutine.
func Default() *Metrics {
	if metrics != nil {
		return metrics
	}

	var err error

	metrics, err = NewWithRegistry(prometheus.DefaultRegisterer)
	if err != nil {
		panic(err)
	}

	return metrics
}

// Shutdown gracefully stops the metrics processing goroutine.
// It is idempotent and can be called multiple times safely.
func (m *Metrics) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.stopCh)
		m.cancel()
	})
}

// HandleUpdate processes metrics from the channel.
func (m *Metrics) HandleUpdate() {
	for {
		select {
		case change, ok := <-m.channel:
			if !ok {
				return
			}

			m.apply(change)
		case <-m.stopCh:
			return
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Metrics) apply(change *Metric) {
	m.total.Inc()

	if change.Failed {
		m.failed.Inc()

		return
	}

	if change.CloneSkipped {
		m.clonesSkipped.Inc()
	}

	m.branches.Set(float64(change.Branches))
	m.changes.Set(float64(change.Changes))
	m.partialDiffs.Set(float64(change.PartialDiffs))
	m.changesTotal.Add(float64(change.Changes))
	m.partialTotal.Add(float64(change.PartialDiffs))

	if !change.ObservedAt.IsZero() {
		m.lastObservation.Set(float64(change.ObservedAt.Unix()))
	}
}

// Package metrics provides tracking and exposure of gitwatch observation metrics.
// It integrates with Prometheus to monitor observation cycles and the branch changes they find.
//
// Key components:
//   - Metrics: Handles metric queuing and updates.
//   - NewMetric: Creates metrics from an observed state.
//
// Usage example:
//
//	m := metrics.Default()
//	m.RegisterObservation(metrics.NewMetric(state, changed, partial))
//	if !m.QueueIsEmpty() {
//	    logrus.Info("Metrics queued")
//	}
//
// The package uses Prometheus for metrics exposure and integrates with types.RepoState.
package metrics

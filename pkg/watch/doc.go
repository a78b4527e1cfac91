// Package watch implements repository observation for gitwatch.
//
// A Config describes what to watch. NewHandler validates it and returns a
// Handler, which observes the repository through a types.Provider, compares
// each observation with the previous one and stores the result.
//
// Key components:
//   - Config: Immutable watcher configuration with With builder methods.
//   - Classify and Diff: Compare branch heads and compute changed paths.
//   - Handler.Observe: One acquire, read, diff and store cycle.
//   - Handler.Watch and Handler.WatchAsync: Scheduled observation loop.
//
// Usage example:
//
//	cfg, err := watch.NewConfig("https://github.com/owner/repo.git")
//	if err != nil {
//	    return err
//	}
//
//	h, err := watch.NewHandler(ctx, cfg.WithPollInterval(time.Minute), client.NewClient())
//	if err != nil {
//	    return err
//	}
//
//	if _, err := h.Observe(ctx); err != nil {
//	    return err
//	}
//
//	return h.Watch(ctx, false, func(state types.RepoState) {
//	    logrus.WithField("changes", state.PathChanges).Info("Repository changed")
//	})
package watch

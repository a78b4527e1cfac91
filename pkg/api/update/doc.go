// Package update provides an HTTP API handler that requests an immediate observation.
// The request only wakes the watch loop. Results are reported through the usual
// change callback, notifications and the state endpoint.
//
// Key components:
//   - Handler: Queues observation requests, at most one pending at a time.
//
// Usage example:
//
//	trigger := make(chan struct{}, 1)
//	handler := update.New(trigger)
//	httpAPI.RegisterFunc(handler.Path, handler.Handle)
package update

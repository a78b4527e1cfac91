package update

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Path is the endpoint that requests an immediate observation.
const Path = "/v1/update"

// retryAfterSeconds is suggested to clients when a request is already pending.
const retryAfterSeconds = "30"

// Handler requests immediate observations via HTTP.
type Handler struct {
	Path    string          // API endpoint path.
	trigger chan<- struct{} // Wakes the watch loop, buffered so one request can be pending.
}

// New creates a Handler that sends on trigger.
//
// Parameters:
//   - trigger: Channel the watch loop waits on, usually with a buffer of one.
//
// Returns:
//   - *Handler: Initialized handler.
func New(trigger chan<- struct{}) *Handler {
	return &Handler{
		Path:    Path,
		trigger: trigger,
	}
}

// Handle queues an observation without waiting for it.
//
// It returns HTTP 202 (Accepted) once the request is queued and HTTP 429 (Too
// Many Requests) when an earlier request is still pending, since a second
// observation right after it would find nothing new.
//
// Parameters:
//   - w: HTTP response writer.
//   - r: HTTP request, its body is discarded.
func (handle *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	logrus.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Info("Received HTTP API update request")

	if _, err := io.Copy(io.Discard, r.Body); err != nil {
		logrus.WithError(err).Debug("Failed to read request body")
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)

		return
	}

	select {
	case handle.trigger <- struct{}{}:
		logrus.Debug("Queued observation request")

		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":      "queued",
			"api_version": "v1",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		})
	default:
		logrus.Debug("Skipped observation request, another one is already pending")

		w.Header().Set("Retry-After", retryAfterSeconds)
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":       "an observation is already pending",
			"api_version": "v1",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// writeJSON encodes body before writing headers so encoding failures still yield a 500.
func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	var buf bytes.Buffer

	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(buf.Bytes()); err != nil {
		logrus.WithError(err).Error("Failed to write response")
	}
}

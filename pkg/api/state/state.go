// Package state serves the watcher's current repository state over the HTTP API.
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/gitwatch/pkg/types"
	"github.com/nicholas-fedor/gitwatch/pkg/watch"
)

// Path is the endpoint the state is served on.
const Path = "/v1/state"

// Reader provides the current state, see watch.Handler.
type Reader interface {
	CurrentState() (types.RepoState, error)
	ID() string
}

// Handler serves the current state as JSON.
type Handler struct {
	Path   string
	repo   string
	reader Reader
}

// response is the JSON body of a successful request.
type response struct {
	Repo    string          `json:"repo"`
	Watcher string          `json:"watcher"`
	State   types.RepoState `json:"state"`
}

// New creates a Handler.
//
// Parameters:
//   - repo: Repository URL reported in responses.
//   - reader: State source.
//
// Returns:
//   - *Handler: Initialized handler.
func New(repo string, reader Reader) *Handler {
	return &Handler{
		Path:   Path,
		repo:   repo,
		reader: reader,
	}
}

// Handle writes the current state.
//
// The optional "branch" query parameters restrict the response to those
// branches. Before the first observation it returns HTTP 503 (Service
// Unavailable).
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)

		return
	}

	current, err := h.reader.CurrentState()
	if errors.Is(err, watch.ErrNoState) {
		w.Header().Set("Retry-After", "5")
		http.Error(w, "No observation yet", http.StatusServiceUnavailable)

		return
	}

	if err != nil {
		logrus.WithError(err).Error("Failed to read current state")
		http.Error(w, "Failed to read state", http.StatusInternalServerError)

		return
	}

	if branches := r.URL.Query()["branch"]; len(branches) > 0 {
		current = onlyBranches(current, branches)
	}

	var buf bytes.Buffer

	if err := json.NewEncoder(&buf).Encode(response{
		Repo:    h.repo,
		Watcher: h.reader.ID(),
		State:   current,
	}); err != nil {
		logrus.WithError(err).Error("Failed to encode state")
		http.Error(w, "Failed to encode state", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(buf.Bytes()); err != nil {
		logrus.WithError(err).Debug("Failed to write state response")
	}
}

// onlyBranches returns state restricted to the named branches.
func onlyBranches(state types.RepoState, branches []string) types.RepoState {
	out := types.RepoState{
		ObservedAt:  state.ObservedAt,
		BranchHeads: types.BranchHeads{},
		PathChanges: types.PathChangeSet{},
	}

	for _, branch := range branches {
		if head, ok := state.BranchHeads[branch]; ok {
			out.BranchHeads[branch] = head
		}

		if paths, ok := state.PathChanges[branch]; ok {
			out.PathChanges[branch] = paths
		}
	}

	return out
}

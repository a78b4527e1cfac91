package types

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// ErrInvalidCommitID is returned when a commit id cannot be parsed.
var ErrInvalidCommitID = errors.New("invalid commit id")

// shortIDLength is the number of hex characters in a short commit id.
const shortIDLength = 7

// CommitID is an opaque content hash identifying a commit.
//
// Values are copied on construction and must not be mutated afterwards.
type CommitID []byte

// NewCommitID copies raw into a new CommitID.
func NewCommitID(raw []byte) CommitID {
	return CommitID(slices.Clone(raw))
}

// ParseCommitID decodes a hex encoded commit id.
func ParseCommitID(s string) (CommitID, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCommitID)
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidCommitID, s, err)
	}

	return CommitID(raw), nil
}

// String returns the lowercase hex form of the id.
func (id CommitID) String() string {
	return hex.EncodeToString(id)
}

// ShortID returns the first seven hex characters of the id.
func (id CommitID) ShortID() string {
	s := id.String()
	if len(s) > shortIDLength {
		return s[:shortIDLength]
	}

	return s
}

// Equal reports whether both ids name the same commit.
func (id CommitID) Equal(other CommitID) bool {
	return bytes.Equal(id, other)
}

// MarshalText encodes the id as hex.
func (id CommitID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes a hex id.
func (id *CommitID) UnmarshalText(text []byte) error {
	parsed, err := ParseCommitID(string(text))
	if err != nil {
		return err
	}

	*id = parsed

	return nil
}

// CommitMeta describes a commit at a branch head.
//
// An empty Message or zero Timestamp means the provider did not supply one.
type CommitMeta struct {
	ID        CommitID  `json:"id"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Clone returns a deep copy of the commit metadata.
func (c CommitMeta) Clone() CommitMeta {
	c.ID = NewCommitID(c.ID)

	return c
}

// BranchHeads maps branch names to their head commit.
type BranchHeads map[string]CommitMeta

// Clone returns a deep copy of the heads.
func (h BranchHeads) Clone() BranchHeads {
	if h == nil {
		return nil
	}

	out := make(BranchHeads, len(h))
	for name, meta := range h {
		out[name] = meta.Clone()
	}

	return out
}

// Names returns the branch names in sorted order.
func (h BranchHeads) Names() []string {
	return slices.Sorted(maps.Keys(h))
}

// PathChangeSet maps branch names to the sorted set of paths changed on that branch.
type PathChangeSet map[string][]string

// Clone returns a deep copy of the change set.
func (p PathChangeSet) Clone() PathChangeSet {
	if p == nil {
		return nil
	}

	out := make(PathChangeSet, len(p))
	for name, paths := range p {
		out[name] = slices.Clone(paths)
	}

	return out
}

// RepoState is one observation of a repository.
type RepoState struct {
	ObservedAt  time.Time     `json:"observed_at"`
	BranchHeads BranchHeads   `json:"branch_heads"`
	PathChanges PathChangeSet `json:"path_changes"`
}

// Clone returns a deep copy of the state.
func (s RepoState) Clone() RepoState {
	return RepoState{
		ObservedAt:  s.ObservedAt,
		BranchHeads: s.BranchHeads.Clone(),
		PathChanges: s.PathChanges.Clone(),
	}
}

// ChangeKind classifies a branch when comparing two observations.
type ChangeKind string

const (
	// ChangeUnchanged means the branch head did not move.
	ChangeUnchanged ChangeKind = "unchanged"
	// ChangeUpdated means the branch existed before and its head moved.
	ChangeUpdated ChangeKind = "updated"
	// ChangeNew means the branch was not present in the previous observation.
	ChangeNew ChangeKind = "new"
)

// Fires reports whether a change of this kind triggers the watch callback.
func (k ChangeKind) Fires() bool {
	return k == ChangeUpdated || k == ChangeNew
}

// BranchChange is the classification of a single branch.
type BranchChange struct {
	Branch  string     `json:"branch"`
	Kind    ChangeKind `json:"kind"`
	Prior   CommitID   `json:"prior,omitempty"` // Set for ChangeUpdated and ChangeUnchanged.
	Current CommitMeta `json:"current"`
}

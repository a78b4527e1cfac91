// Package types provides shared types for Git operations in gitwatch.
package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies acquisition failures reported by a Provider.
type ErrorKind string

const (
	// KindAuthFailed indicates the remote rejected the credentials.
	KindAuthFailed ErrorKind = "auth failed"
	// KindNotFound indicates the repository, branch or commit does not exist.
	KindNotFound ErrorKind = "not found"
	// KindNetworkUnreachable indicates the remote could not be reached.
	KindNetworkUnreachable ErrorKind = "network unreachable"
	// KindOther covers every other provider failure.
	KindOther ErrorKind = "other"
)

// Sentinel errors matched by errors.Is against an Error of the same kind.
var (
	ErrAuthFailed         = errors.New("authentication failed")
	ErrNotFound           = errors.New("repository not found")
	ErrNetworkUnreachable = errors.New("network unreachable")
)

// Error represents a Git operation error with structured information.
type Error struct {
	Op     string    // Operation that failed
	URL    string    // Repository URL
	Kind   ErrorKind // Failure class
	Reason string    // Human-readable reason
	Cause  error     // Underlying error
}

func (e Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("git %s %s: %s: %v", e.Op, e.URL, e.Reason, e.Cause)
	}

	return fmt.Sprintf("git %s %s: %s", e.Op, e.URL, e.Reason)
}

func (e Error) Unwrap() error {
	return e.Cause
}

// Is matches the kind sentinels so callers can use errors.Is(err, types.ErrAuthFailed).
func (e Error) Is(target error) bool {
	switch {
	case errors.Is(target, ErrAuthFailed):
		return e.Kind == KindAuthFailed
	case errors.Is(target, ErrNotFound):
		return e.Kind == KindNotFound
	case errors.Is(target, ErrNetworkUnreachable):
		return e.Kind == KindNetworkUnreachable
	default:
		return false
	}
}

// ErrorKindOf returns the kind of the first Error in err's chain, or KindOther.
func ErrorKindOf(err error) ErrorKind {
	var gitErr Error
	if errors.As(err, &gitErr) && gitErr.Kind != "" {
		return gitErr.Kind
	}

	return KindOther
}

// IsAuthError checks if an error is authentication-related.
func IsAuthError(err error) bool {
	return ErrorKindOf(err) == KindAuthFailed
}

// IsNetworkError checks if an error is network-related.
func IsNetworkError(err error) bool {
	return ErrorKindOf(err) == KindNetworkUnreachable
}

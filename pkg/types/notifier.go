package types

// Notifier defines the common interface for change notification services.
type Notifier interface {
	// Notify sends a message describing a branch change observed in state.
	Notify(repo string, change BranchChange, state RepoState)
	GetNames() []string // Service names.
	GetURLs() []string  // Service URLs.
	Close()             // Stop and flush notifications.
}

// Package types defines the data model and collaborator interfaces shared by gitwatch packages.
//
// Key components:
//   - RepoState: One observation of a repository (branch heads and changed paths).
//   - CommitID / CommitMeta: Commit identity and metadata at a branch head.
//   - Credential: Closed set of authentication variants with redacted formatting.
//   - RepositoryLocation: Canonical, credential-free repository reference.
//   - Provider / Snapshot: Boundary to the clone and diff machinery.
//   - Error: Structured provider failure carrying an ErrorKind.
//   - Notifier: Interface for change notification services.
//
// Usage example:
//
//	snapshot, err := provider.Clone(ctx, location, cred, true)
//	if err != nil {
//		return err
//	}
//	defer snapshot.Close()
//
//	heads, err := snapshot.BranchHeads(ctx, nil)
package types

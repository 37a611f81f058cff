// Package oxenerr holds the typed error kinds that cross module
// boundaries, per the error handling design: pure functions return
// these to their callers, never swallow them, and never fall back
// silently.
package oxenerr

import "fmt"

// NotFoundError reports that an object, node, commit, branch, or path
// could not be located.
type NotFoundError struct {
	Kind string // "object", "node", "commit", "branch", "path"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// HashMismatchError reports that reassembled or finalized content did
// not hash to the expected value.
type HashMismatchError struct {
	Expected string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// NotFastForwardError reports a CAS failure on a branch advance.
type NotFastForwardError struct {
	Branch   string
	Expected string
	Actual   string
}

func (e *NotFastForwardError) Error() string {
	return fmt.Sprintf("branch %q is not a fast-forward: expected parent %s, branch is at %s", e.Branch, e.Expected, e.Actual)
}

// BranchAdvancedError is the local-writer flavor of a CAS failure: the
// branch moved out from under a commit in progress.
type BranchAdvancedError struct {
	Branch   string
	Expected string
	Actual   string
}

func (e *BranchAdvancedError) Error() string {
	return fmt.Sprintf("branch %q advanced concurrently: expected %s, found %s", e.Branch, e.Expected, e.Actual)
}

// WorkspaceBehindError reports that a workspace's base commit is no
// longer the branch tip at commit time.
type WorkspaceBehindError struct {
	WorkspaceID  string
	BaseCommit   string
	CurrentTip   string
	TargetBranch string
}

func (e *WorkspaceBehindError) Error() string {
	return fmt.Sprintf("workspace %q is behind branch %q: based on %s, tip is now %s", e.WorkspaceID, e.TargetBranch, e.BaseCommit, e.CurrentTip)
}

// Conflict describes one path or row in conflict during a merge.
type Conflict struct {
	Path    string
	RowKey  string
	Reason  string
	Ours    string
	Theirs  string
	BaseVal string
}

// MergeConflictError carries the full conflict list for a failed merge.
type MergeConflictError struct {
	Conflicts []Conflict
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge produced %d conflict(s)", len(e.Conflicts))
}

// QueryableWorkspaceNotFoundError reports that data-frame row
// operations were attempted against a workspace that has no indexed
// frame for the requested path.
type QueryableWorkspaceNotFoundError struct {
	WorkspaceID string
	Path        string
}

func (e *QueryableWorkspaceNotFoundError) Error() string {
	return fmt.Sprintf("workspace %q has no indexed data frame at %q", e.WorkspaceID, e.Path)
}

// AlreadyIndexedError reports a duplicate index attempt.
type AlreadyIndexedError struct {
	Path string
}

func (e *AlreadyIndexedError) Error() string {
	return fmt.Sprintf("%q is already indexed", e.Path)
}

// UnsupportedError reports an operation that is not supported for the
// given input, e.g. indexing a non-tabular file.
type UnsupportedError struct {
	Operation string
	Reason    string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported operation %q: %s", e.Operation, e.Reason)
}

// MigrationRequiredError reports an on-disk payload or config whose
// format-version tag is newer or incompatible.
type MigrationRequiredError struct {
	Component      string
	FoundVersion   int
	ExpectVersion  int
}

func (e *MigrationRequiredError) Error() string {
	return fmt.Sprintf("%s requires migration: found version %d, expected %d", e.Component, e.FoundVersion, e.ExpectVersion)
}

// VersionMismatchError reports two peers disagreeing on min supported
// version during a sync handshake.
type VersionMismatchError struct {
	Local  string
	Remote string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("version mismatch: local %s, remote %s", e.Local, e.Remote)
}

// UnauthorizedError is a transport-layer auth failure.
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Reason)
}

// Package git provides the version-control capability interface consumed by
// the promotion and rollback engines, together with an implementation working
// against a local repository clone.
package git

import (
	"context"

	"github.com/helvethink/deployctl/pkg/schemas"
)

// Gateway abstracts the version-control operations the engines rely on. Every
// operation is synchronous and blocks the calling flow until completion.
// Mutating operations expect the engine to have verified a clean working tree
// beforehand.
type Gateway interface {
	// CurrentBranch returns the name of the branch HEAD points at.
	CurrentBranch(ctx context.Context) (string, error)

	// HasUncommittedChanges reports whether the working tree holds changes
	// that are not committed yet.
	HasUncommittedChanges(ctx context.Context) (bool, error)

	// Fetch updates the remote tracking references. Fails with a
	// schemas.NetworkError when the remote is unreachable.
	Fetch(ctx context.Context) error

	// LocalBranchExists reports whether the branch exists locally.
	LocalBranchExists(ctx context.Context, name string) (bool, error)

	// RemoteBranchExists reports whether the branch exists on the remote, as
	// of the last fetch.
	RemoteBranchExists(ctx context.Context, name string) (bool, error)

	// CreateLocalFromRemote creates a local branch tracking the remote branch
	// of the same name.
	CreateLocalFromRemote(ctx context.Context, name string) error

	// Checkout switches the working tree to the given branch.
	Checkout(ctx context.Context, branch string) error

	// Pull fast-forwards the given branch from the remote.
	Pull(ctx context.Context, branch string) error

	// RevisionRange returns the ordered revisions reachable from toRef but not
	// from fromRef, oldest first.
	RevisionRange(ctx context.Context, fromRef, toRef string) (schemas.RevisionRange, error)

	// CommitCount counts the revisions reachable from ref, walking at most
	// limit revisions.
	CommitCount(ctx context.Context, ref string, limit int) (int, error)

	// HeadRevision returns the revision identifier HEAD points at.
	HeadRevision(ctx context.Context) (string, error)

	// Merge merges source into the currently checked out branch (into) with
	// the given commit message and returns the resulting revision. On
	// conflict it fails with a schemas.MergeConflictError, leaving the merge
	// in progress for manual resolution.
	Merge(ctx context.Context, source, into, message string) (string, error)

	// Revert produces inverse commits undoing the given revision range on the
	// currently checked out branch, as one logical operation, and returns the
	// resulting revision. On conflict it fails with a
	// schemas.RevertConflictError, leaving the revert in progress for manual
	// resolution. History is preserved, never rewritten.
	Revert(ctx context.Context, branch string, rr schemas.RevisionRange, message string) (string, error)

	// Push publishes the given branch to the remote. Fails with a
	// schemas.PushRejectedError when the remote refuses the update and a
	// schemas.NetworkError when it is unreachable.
	Push(ctx context.Context, branch string) error
}

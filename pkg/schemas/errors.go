package schemas

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrDirtyWorkingTree is returned when a mutating pipeline is attempted
	// while the working tree holds uncommitted changes. It is a precondition
	// failure: no mutation has been attempted.
	ErrDirtyWorkingTree = errors.New("working tree has uncommitted changes")

	// ErrNoChangesToPromote is returned when the target environment already
	// contains every revision of the source and the request did not explicitly
	// opt into an empty promotion.
	ErrNoChangesToPromote = errors.New("no changes to promote")

	// ErrConfirmationDeclined is returned when the operator declines the
	// confirmation prompt. No mutation has been attempted.
	ErrConfirmationDeclined = errors.New("confirmation declined")
)

// UnknownEnvironmentError is returned when an environment name or alias does
// not resolve against the registry.
type UnknownEnvironmentError struct {
	Name string
}

func (e UnknownEnvironmentError) Error() string {
	return fmt.Sprintf("unknown environment '%s'", e.Name)
}

// InvalidRequestError is returned when a request fails validation before any
// mutation has been attempted.
type InvalidRequestError struct {
	Reason string
}

func (e InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// NetworkError wraps a failure to reach the version-control remote. It is safe
// to retry: no local damage has been done.
type NetworkError struct {
	Op  string
	Err error
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e NetworkError) Unwrap() error {
	return e.Err
}

// MergeConflictError is returned when merging the source branch into the
// target conflicts. The repository is left on the target branch with the merge
// in progress; resolution is manual.
type MergeConflictError struct {
	Branch string
	Files  []string
}

func (e MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict on branch %s, unresolved files: %s", e.Branch, strings.Join(e.Files, ", "))
}

// RevertConflictError is returned when reverting a revision range conflicts.
// The repository is left on the branch with the revert in progress; resolution
// is manual.
type RevertConflictError struct {
	Branch string
	Files  []string
}

func (e RevertConflictError) Error() string {
	return fmt.Sprintf("revert conflict on branch %s, unresolved files: %s", e.Branch, strings.Join(e.Files, ", "))
}

// PushRejectedError is returned when the remote rejects a push. The local
// mutation succeeded and remains in place: the fix differs from a conflict
// (pull and retry vs. manual merge), hence the distinct type.
type PushRejectedError struct {
	Branch string
	Reason string
}

func (e PushRejectedError) Error() string {
	return fmt.Sprintf("push of branch %s rejected by remote: %s", e.Branch, e.Reason)
}

// InsufficientHistoryError is returned when a rollback requests more revisions
// than the branch history holds. It is caught during preview, before any
// mutation.
type InsufficientHistoryError struct {
	Branch    string
	Requested int
	Available int
}

func (e InsufficientHistoryError) Error() string {
	return fmt.Sprintf("branch %s only has %d revision(s), cannot roll back %d", e.Branch, e.Available, e.Requested)
}

// DeployFailureError is returned when the repository mutation succeeded but at
// least one platform deployment did not. The git state is not rolled back
// automatically: undoing a pushed promotion is itself a rollback decision.
type DeployFailureError struct {
	Environment string
	Outcomes    DeploymentOutcomes
}

func (e DeployFailureError) Error() string {
	failed := make([]string, 0, len(e.Outcomes.Failed()))
	for _, o := range e.Outcomes.Failed() {
		failed = append(failed, string(o.Platform))
	}

	return fmt.Sprintf("deployment of environment %s failed on: %s", e.Environment, strings.Join(failed, ", "))
}

// PipelineFailure wraps an engine failure with the stage reached and a human
// readable description of the state the repository and remote were left in, so
// an operator can resume safely.
type PipelineFailure struct {
	Stage Stage  // Stage the pipeline had reached when it failed
	State string // Description of the state the repository/remote was left in
	Err   error  // Underlying typed failure
}

func (f *PipelineFailure) Error() string {
	if f.State != "" {
		return fmt.Sprintf("pipeline failed at stage %s: %v (%s)", f.Stage, f.Err, f.State)
	}

	return fmt.Sprintf("pipeline failed at stage %s: %v", f.Stage, f.Err)
}

func (f *PipelineFailure) Unwrap() error {
	return f.Err
}

// NewPipelineFailure wraps err with the stage reached and the repository state
// description.
func NewPipelineFailure(stage Stage, state string, err error) *PipelineFailure {
	return &PipelineFailure{
		Stage: stage,
		State: state,
		Err:   err,
	}
}

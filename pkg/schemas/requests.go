package schemas

// PromotionRequest describes a single promotion of one environment's branch
// into another. It is created per invocation and discarded once the result has
// been reported.
type PromotionRequest struct {
	Source string // Name (or alias) of the environment promoted from
	Target string // Name (or alias) of the environment promoted into

	// AllowEmpty opts into promoting when the target already contains every
	// revision of the source, e.g. to re-trigger a deployment. Without it, an
	// empty revision range fails the promotion before any mutation.
	AllowEmpty bool

	// AllowDowngrade opts into promoting towards an environment ranked lower
	// than the source, which is normally rejected.
	AllowDowngrade bool

	AutoConfirm bool // Skip the interactive confirmation prompt
	DryRun      bool // Stop after the preview stage, perform no mutation
	Wait        bool // Block until the platforms confirm deploy completion
}

// RollbackRequest describes an append-only rollback of the last Count
// revisions of one environment's branch.
type RollbackRequest struct {
	Environment string // Name (or alias) of the environment rolled back
	Count       int    // Number of revisions to undo, must be >= 1

	AutoConfirm bool // Skip the interactive confirmation prompt
	DryRun      bool // Stop after the preview stage, perform no mutation
	Wait        bool // Block until the platforms confirm deploy completion
}

// PromotionResult represents the terminal state of a successful promotion.
type PromotionResult struct {
	RunID          string             // Unique identifier of the pipeline invocation
	Source         string             // Canonical name of the source environment
	Target         string             // Canonical name of the target environment
	Range          RevisionRange      // Revisions the promotion carried over
	MergedRevision string             // Revision the target branch points at after the merge
	Outcomes       DeploymentOutcomes // Per-platform deployment outcomes
	DryRun         bool               // Whether the pipeline stopped after the preview
}

// RollbackResult represents the terminal state of a successful rollback.
type RollbackResult struct {
	RunID            string             // Unique identifier of the pipeline invocation
	Environment      string             // Canonical name of the rolled back environment
	Count            int                // Number of revisions undone
	Range            RevisionRange      // Revisions the rollback reverted
	RevertedRevision string             // Revision the branch points at after the revert
	Outcomes         DeploymentOutcomes // Per-platform deployment outcomes
	DryRun           bool               // Whether the pipeline stopped after the preview
}

package schemas

const (
	// StageIdle is the initial stage of a pipeline, before validation started.
	StageIdle Stage = "idle"

	// StageValidating covers request validation and working tree preconditions.
	StageValidating Stage = "validating"

	// StageDiffPreview covers the computation of the revision range a
	// promotion would carry over.
	StageDiffPreview Stage = "diff_preview"

	// StagePreviewing covers the computation of the revision range a rollback
	// would undo.
	StagePreviewing Stage = "previewing"

	// StageAwaitingConfirmation covers the interactive confirmation prompt.
	StageAwaitingConfirmation Stage = "awaiting_confirmation"

	// StageMerging covers the local merge of the source branch into the target.
	StageMerging Stage = "merging"

	// StageReverting covers the local revert of the rolled back revisions.
	StageReverting Stage = "reverting"

	// StagePushing covers pushing the mutated branch to the shared remote.
	StagePushing Stage = "pushing"

	// StageDeploying covers triggering the platform deployments.
	StageDeploying Stage = "deploying"

	// StageDone is the successful terminal stage.
	StageDone Stage = "done"

	// StageFailed is the failure terminal stage.
	StageFailed Stage = "failed"
)

// Stage is a custom type naming the step a pipeline has reached. Pipelines are
// linear: once a mutating stage has started, the remaining stages run to a
// terminal state, there is no mid-pipeline cancellation.
type Stage string

package controller

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helvethink/deployctl/pkg/schemas"
)

// Promote runs the promotion pipeline, carrying the source environment's
// branch into the target's and redeploying the target. The pipeline is
// linear: once the merge stage has started, the remaining stages run to a
// terminal state, failures abort the remaining stages immediately.
func (c Controller) Promote(ctx context.Context, req schemas.PromotionRequest) (res schemas.PromotionResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller:Promote")
	defer span.End()
	span.SetAttributes(attribute.String("source", req.Source))
	span.SetAttributes(attribute.String("target", req.Target))

	res.RunID = uuid.NewString()
	res.DryRun = req.DryRun

	// Validating: resolve both environments before touching the repository
	source, err := c.Registry.Resolve(req.Source)
	if err != nil {
		return res, schemas.NewPipelineFailure(schemas.StageValidating, "", err)
	}

	target, err := c.Registry.Resolve(req.Target)
	if err != nil {
		return res, schemas.NewPipelineFailure(schemas.StageValidating, "", err)
	}

	res.Source = source.Name
	res.Target = target.Name

	if source.Name == target.Name {
		return res, schemas.NewPipelineFailure(schemas.StageValidating, "", schemas.InvalidRequestError{
			Reason: "source and target environments must differ",
		})
	}

	// Promotions normally go up the environment order
	if target.Rank < source.Rank && !req.AllowDowngrade {
		return res, schemas.NewPipelineFailure(schemas.StageValidating, "", schemas.InvalidRequestError{
			Reason: fmt.Sprintf("'%s' is ranked below '%s', promoting downwards requires the allow-downgrade flag", target.Name, source.Name),
		})
	}

	// A dirty working tree short-circuits before any network call
	dirty, err := c.Git.HasUncommittedChanges(ctx)
	if err != nil {
		return res, schemas.NewPipelineFailure(schemas.StageValidating, "", err)
	}

	if dirty {
		return res, schemas.NewPipelineFailure(schemas.StageValidating, "no mutation attempted", schemas.ErrDirtyWorkingTree)
	}

	if err = c.Git.Fetch(ctx); err != nil {
		return res, schemas.NewPipelineFailure(schemas.StageValidating, "no mutation attempted", err)
	}

	for _, branch := range []string{source.Branch, target.Branch} {
		if err = c.ensureLocalBranch(ctx, branch); err != nil {
			return res, schemas.NewPipelineFailure(schemas.StageValidating, "no mutation attempted", err)
		}
	}

	// DiffPreview: compute what the promotion would carry over
	if err = c.checkoutAndPull(ctx, source.Branch); err != nil {
		return res, schemas.NewPipelineFailure(schemas.StageDiffPreview, "", err)
	}

	res.Range, err = c.Git.RevisionRange(ctx, target.Branch, source.Branch)
	if err != nil {
		return res, schemas.NewPipelineFailure(schemas.StageDiffPreview, "", err)
	}

	log.WithContext(ctx).
		WithFields(log.Fields{
			"source":    source.Name,
			"target":    target.Name,
			"revisions": res.Range.Count(),
		}).
		Info("computed promotion revision range")

	// Promoting with nothing to carry over is an explicit opt-in, e.g. to
	// re-trigger a deployment
	if res.Range.Empty() && !req.AllowEmpty {
		return res, schemas.NewPipelineFailure(schemas.StageDiffPreview, "no mutation attempted", schemas.ErrNoChangesToPromote)
	}

	if req.DryRun {
		return res, nil
	}

	// AwaitingConfirmation
	if !req.AutoConfirm && !c.Config.Global.NonInteractive {
		var confirmed bool

		prompt := fmt.Sprintf("Promote %d revision(s) from '%s' to '%s'?", res.Range.Count(), source.Name, target.Name)

		if confirmed, err = c.Confirm.Confirm(ctx, prompt); err != nil {
			return res, schemas.NewPipelineFailure(schemas.StageAwaitingConfirmation, "no mutation attempted", err)
		}

		if !confirmed {
			return res, schemas.NewPipelineFailure(schemas.StageAwaitingConfirmation, "no mutation attempted", schemas.ErrConfirmationDeclined)
		}
	}

	// Merging
	if err = c.checkoutAndPull(ctx, target.Branch); err != nil {
		return res, schemas.NewPipelineFailure(schemas.StageMerging, "", err)
	}

	res.MergedRevision, err = c.Git.Merge(ctx, source.Branch, target.Branch, fmt.Sprintf("Promote %s to %s", source.Name, target.Name))
	if err != nil {
		state := ""
		if _, conflict := err.(schemas.MergeConflictError); conflict {
			state = fmt.Sprintf("merge in progress on branch %s, resolve manually", target.Branch)
		}

		return res, schemas.NewPipelineFailure(schemas.StageMerging, state, err)
	}

	// Pushing: a rejected push leaves the merge commit local
	if err = c.Git.Push(ctx, target.Branch); err != nil {
		return res, schemas.NewPipelineFailure(schemas.StagePushing,
			fmt.Sprintf("merge commit remains local on branch %s", target.Branch), err)
	}

	// Deploying
	res.Outcomes = c.deployEnvironment(ctx, target, res.MergedRevision, req.Wait)
	if !res.Outcomes.Succeeded() {
		return res, schemas.NewPipelineFailure(schemas.StageDeploying,
			fmt.Sprintf("branch %s pushed, deployed artifact out of date", target.Branch),
			schemas.DeployFailureError{Environment: target.Name, Outcomes: res.Outcomes})
	}

	log.WithContext(ctx).
		WithFields(log.Fields{
			"source":   source.Name,
			"target":   target.Name,
			"revision": res.MergedRevision,
			"run-id":   res.RunID,
		}).
		Info("promotion complete")

	return res, nil
}

// ensureLocalBranch makes sure the branch exists locally, creating it from
// the remote when missing.
func (c Controller) ensureLocalBranch(ctx context.Context, name string) error {
	exists, err := c.Git.LocalBranchExists(ctx, name)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	remote, err := c.Git.RemoteBranchExists(ctx, name)
	if err != nil {
		return err
	}

	if !remote {
		return schemas.InvalidRequestError{
			Reason: fmt.Sprintf("branch '%s' exists neither locally nor on the remote", name),
		}
	}

	log.WithContext(ctx).
		WithField("branch", name).
		Debug("creating local branch from remote")

	return c.Git.CreateLocalFromRemote(ctx, name)
}

// checkoutAndPull switches to the branch and fast-forwards it from the remote.
func (c Controller) checkoutAndPull(ctx context.Context, branch string) error {
	if err := c.Git.Checkout(ctx, branch); err != nil {
		return err
	}

	return c.Git.Pull(ctx, branch)
}

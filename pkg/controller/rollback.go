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

// Rollback runs the rollback pipeline, undoing the last revisions of an
// environment's branch through inverse commits and redeploying it. History is
// preserved, never rewritten: an append-only undo is always safe to push to a
// shared branch.
func (c Controller) Rollback(ctx context.Context, req schemas.RollbackRequest) (res schemas.RollbackResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller:Rollback")
	defer span.End()
	span.SetAttributes(attribute.String("environment", req.Environment))
	span.SetAttributes(attribute.Int("count", req.Count))

	res.RunID = uuid.NewString()
	res.Count = req.Count
	res.DryRun = req.DryRun

	// Validating
	if req.Count < 1 {
		return res, schemas.NewPipelineFailure(schemas.StageValidating, "", schemas.InvalidRequestError{
			Reason: fmt.Sprintf("count must be a positive integer, got %d", req.Count),
		})
	}

	env, err := c.Registry.Resolve(req.Environment)
	if err != nil {
		return res, schemas.NewPipelineFailure(schemas.StageValidating, "", err)
	}

	res.Environment = env.Name

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

	if err = c.ensureLocalBranch(ctx, env.Branch); err != nil {
		return res, schemas.NewPipelineFailure(schemas.StageValidating, "no mutation attempted", err)
	}

	if err = c.checkoutAndPull(ctx, env.Branch); err != nil {
		return res, schemas.NewPipelineFailure(schemas.StageValidating, "", err)
	}

	// Previewing: the branch must hold more revisions than the rollback
	// undoes, the root commit cannot be reverted away
	available, err := c.Git.CommitCount(ctx, env.Branch, req.Count+1)
	if err != nil {
		return res, schemas.NewPipelineFailure(schemas.StagePreviewing, "", err)
	}

	if available <= req.Count {
		return res, schemas.NewPipelineFailure(schemas.StagePreviewing, "no mutation attempted", schemas.InsufficientHistoryError{
			Branch:    env.Branch,
			Requested: req.Count,
			Available: available,
		})
	}

	res.Range, err = c.Git.RevisionRange(ctx, fmt.Sprintf("HEAD~%d", req.Count), "HEAD")
	if err != nil {
		return res, schemas.NewPipelineFailure(schemas.StagePreviewing, "", err)
	}

	log.WithContext(ctx).
		WithFields(log.Fields{
			"environment": env.Name,
			"branch":      env.Branch,
			"revisions":   res.Range.Count(),
		}).
		Info("computed rollback revision range")

	if req.DryRun {
		return res, nil
	}

	// AwaitingConfirmation
	if !req.AutoConfirm && !c.Config.Global.NonInteractive {
		var confirmed bool

		prompt := fmt.Sprintf("Roll back the last %d revision(s) of '%s'?", req.Count, env.Name)

		if confirmed, err = c.Confirm.Confirm(ctx, prompt); err != nil {
			return res, schemas.NewPipelineFailure(schemas.StageAwaitingConfirmation, "no mutation attempted", err)
		}

		if !confirmed {
			return res, schemas.NewPipelineFailure(schemas.StageAwaitingConfirmation, "no mutation attempted", schemas.ErrConfirmationDeclined)
		}
	}

	// Reverting
	res.RevertedRevision, err = c.Git.Revert(ctx, env.Branch, res.Range, fmt.Sprintf("Rollback %s: revert last %d revision(s)", env.Name, req.Count))
	if err != nil {
		state := ""
		if _, conflict := err.(schemas.RevertConflictError); conflict {
			state = fmt.Sprintf("revert in progress on branch %s, resolve manually", env.Branch)
		}

		return res, schemas.NewPipelineFailure(schemas.StageReverting, state, err)
	}

	// Pushing: a rejected push leaves the inverse commit local
	if err = c.Git.Push(ctx, env.Branch); err != nil {
		return res, schemas.NewPipelineFailure(schemas.StagePushing,
			fmt.Sprintf("inverse commit remains local on branch %s", env.Branch), err)
	}

	// Deploying: the branch changed, the deployed artifact must follow
	res.Outcomes = c.deployEnvironment(ctx, env, res.RevertedRevision, req.Wait)
	if !res.Outcomes.Succeeded() {
		return res, schemas.NewPipelineFailure(schemas.StageDeploying,
			fmt.Sprintf("branch %s pushed, deployed artifact out of date", env.Branch),
			schemas.DeployFailureError{Environment: env.Name, Outcomes: res.Outcomes})
	}

	log.WithContext(ctx).
		WithFields(log.Fields{
			"environment": env.Name,
			"count":       req.Count,
			"revision":    res.RevertedRevision,
			"run-id":      res.RunID,
		}).
		Info("rollback complete")

	return res, nil
}

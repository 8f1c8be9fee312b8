package controller

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helvethink/deployctl/pkg/schemas"
)

// deployEnvironment triggers the deployment of an environment on every
// platform it targets and journals the per-platform outcomes. A platform
// failure is recorded in the outcome, not returned as an error: the engines
// aggregate outcomes into their overall verdict.
func (c Controller) deployEnvironment(ctx context.Context, env schemas.Environment, revision string, wait bool) (outcomes schemas.DeploymentOutcomes) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller:deployEnvironment")
	defer span.End()
	span.SetAttributes(attribute.String("environment_name", env.Name))
	span.SetAttributes(attribute.String("revision", revision))

	for _, platform := range env.Platforms {
		outcomes = append(outcomes, c.deployOnPlatform(ctx, env, platform, revision, wait))
	}

	return
}

// deployOnPlatform triggers the deployment of an environment on one platform.
// An environment whose service does not exist on the platform yields a
// skipped outcome.
func (c Controller) deployOnPlatform(ctx context.Context, env schemas.Environment, platform schemas.PlatformName, revision string, wait bool) (outcome schemas.DeploymentOutcome) {
	outcome = schemas.DeploymentOutcome{
		Environment: env.Name,
		Platform:    platform,
		Revision:    revision,
		CreatedAt:   time.Now().UTC(),
	}

	logFields := log.Fields{
		"platform": platform,
		"revision": revision,
	}

	for k, v := range env.DefaultLabelsValues() {
		logFields[k] = v
	}

	gw, found := c.Deployers[platform]
	if !found {
		outcome.Status = schemas.DeployStatusSkipped
		outcome.Detail = "platform gateway not configured"

		log.WithContext(ctx).
			WithFields(logFields).
			Warn("platform gateway not configured, skipping deployment")

		c.journalOutcome(ctx, outcome)

		return
	}

	exists, err := gw.ServiceExists(ctx, env)
	if err != nil {
		outcome.Status = schemas.DeployStatusFailed
		outcome.Detail = err.Error()

		log.WithContext(ctx).
			WithFields(logFields).
			WithError(err).
			Error("looking up the environment's service")

		c.journalOutcome(ctx, outcome)

		return
	}

	if !exists {
		outcome.Status = schemas.DeployStatusSkipped
		outcome.Detail = "service not found on platform"

		log.WithContext(ctx).
			WithFields(logFields).
			Warn("service not found on platform, skipping deployment")

		c.journalOutcome(ctx, outcome)

		return
	}

	// The locally built outcome keeps its identity fields, only the
	// platform-reported facts are taken from the gateway's reply.
	reply, err := gw.TriggerDeploy(ctx, env, revision, wait)
	outcome.Status = reply.Status
	outcome.Detail = reply.Detail
	outcome.DeployID = reply.DeployID
	outcome.URL = reply.URL

	if err != nil {
		outcome.Status = schemas.DeployStatusFailed
		outcome.Detail = err.Error()
	}

	log.WithContext(ctx).
		WithFields(logFields).
		WithField("status", outcome.Status).
		Info("deployment triggered")

	c.journalOutcome(ctx, outcome)

	return
}

// journalOutcome records an outcome in the journal. Journaling failures are
// logged, they do not fail the pipeline.
func (c Controller) journalOutcome(ctx context.Context, o schemas.DeploymentOutcome) {
	if err := c.Store.RecordOutcome(ctx, o); err != nil {
		log.WithContext(ctx).
			WithFields(log.Fields{
				"environment": o.Environment,
				"platform":    o.Platform,
			}).
			WithError(err).
			Warn("journaling deployment outcome")
	}
}

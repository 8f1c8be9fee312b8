package deploy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.openly.dev/pointy"

	"github.com/helvethink/deployctl/pkg/config"
	"github.com/helvethink/deployctl/pkg/ratelimit"
	"github.com/helvethink/deployctl/pkg/schemas"
)

// renderPollInterval is how often a waited-on deploy is polled for its
// terminal state.
var renderPollInterval = 5 * time.Second

// Render implements Gateway against the Render REST API.
type Render struct {
	*Client
}

// renderDeploy mirrors the subset of the Render deploy payload the gateway
// consumes.
type renderDeploy struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// renderService mirrors the subset of the Render service payload the gateway
// consumes.
type renderService struct {
	ID             string `json:"id"`
	ServiceDetails struct {
		URL string `json:"url"`
	} `json:"serviceDetails"`
}

// renderDeployRequest is the payload triggering a new deploy of a service.
type renderDeployRequest struct {
	ClearCache *string `json:"clearCache,omitempty"`
}

// NewRenderGateway creates a Render gateway from the given configuration,
// resolving the API token with the documented precedence.
func NewRenderGateway(cfg config.Render, rl ratelimit.Limiter) (*Render, error) {
	token, err := ResolveToken(cfg.Token, "RENDER_API_KEY", "render")
	if err != nil {
		return nil, err
	}

	return &Render{
		Client: NewAPIClient(ClientConfig{
			BaseURL:          cfg.APIURL,
			Token:            token,
			DisableTLSVerify: !cfg.EnableTLSVerify,
			RateLimiter:      rl,
		}),
	}, nil
}

// Name identifies the platform.
func (r *Render) Name() schemas.PlatformName {
	return schemas.PlatformRender
}

// ServiceExists reports whether the environment's Render service exists.
func (r *Render) ServiceExists(ctx context.Context, env schemas.Environment) (bool, error) {
	if env.RenderService == "" {
		return false, nil
	}

	status, err := r.get(ctx, "/v1/services/"+env.RenderService, nil, nil)
	if err != nil {
		if status == http.StatusNotFound {
			return false, nil
		}

		return false, errors.Wrapf(err, "looking up render service '%s'", env.RenderService)
	}

	return true, nil
}

// TriggerDeploy triggers a deploy of the environment's service. With wait set,
// it polls the deploy until the platform reports a terminal state.
func (r *Render) TriggerDeploy(ctx context.Context, env schemas.Environment, revision string, wait bool) (schemas.DeploymentOutcome, error) {
	outcome := schemas.DeploymentOutcome{
		Environment: env.Name,
		Platform:    schemas.PlatformRender,
		Revision:    revision,
		CreatedAt:   time.Now().UTC(),
	}

	var deploy renderDeploy

	_, err := r.post(ctx, "/v1/services/"+env.RenderService+"/deploys", nil, renderDeployRequest{
		ClearCache: pointy.String("do_not_clear"),
	}, &deploy)
	if err != nil {
		outcome.Status = schemas.DeployStatusFailed
		outcome.Detail = err.Error()

		return outcome, nil
	}

	outcome.DeployID = deploy.ID

	if url, urlErr := r.ResolveURL(ctx, env); urlErr == nil {
		outcome.URL = url
	}

	if !wait {
		outcome.Status = renderDeployStatus(deploy.Status)

		return outcome, nil
	}

	return r.waitForDeploy(ctx, env, outcome)
}

// waitForDeploy polls the deploy until it reaches a terminal state or the
// context expires.
func (r *Render) waitForDeploy(ctx context.Context, env schemas.Environment, outcome schemas.DeploymentOutcome) (schemas.DeploymentOutcome, error) {
	for {
		var deploy renderDeploy

		if _, err := r.get(ctx, "/v1/services/"+env.RenderService+"/deploys/"+outcome.DeployID, nil, &deploy); err != nil {
			outcome.Status = schemas.DeployStatusFailed
			outcome.Detail = err.Error()

			return outcome, nil
		}

		outcome.Status = renderDeployStatus(deploy.Status)
		if outcome.Status != schemas.DeployStatusPending {
			return outcome, nil
		}

		log.WithContext(ctx).
			WithFields(log.Fields{
				"platform":  "render",
				"deploy-id": outcome.DeployID,
				"status":    deploy.Status,
			}).
			Debug("waiting for deploy completion")

		select {
		case <-time.After(renderPollInterval):
		case <-ctx.Done():
			return outcome, ctx.Err()
		}
	}
}

// ResolveURL returns the configured public URL of the environment, falling
// back to the URL the platform reports for the service.
func (r *Render) ResolveURL(ctx context.Context, env schemas.Environment) (*string, error) {
	if env.URL != "" {
		return pointy.String(env.URL), nil
	}

	if env.RenderService == "" {
		return nil, nil
	}

	var service renderService

	if _, err := r.get(ctx, "/v1/services/"+env.RenderService, nil, &service); err != nil {
		return nil, errors.Wrapf(err, "resolving URL of render service '%s'", env.RenderService)
	}

	if service.ServiceDetails.URL == "" {
		return nil, nil
	}

	return pointy.String(service.ServiceDetails.URL), nil
}

// ReadinessCheck verifies the Render API is reachable and the token accepted.
func (r *Render) ReadinessCheck(ctx context.Context) healthcheck.Check {
	return func() error {
		if _, err := r.get(ctx, "/v1/owners", nil, nil); err != nil {
			return fmt.Errorf("render API not ready: %w", err)
		}

		return nil
	}
}

// renderDeployStatus maps Render deploy statuses onto deploy statuses.
func renderDeployStatus(status string) schemas.DeployStatus {
	switch status {
	case "live":
		return schemas.DeployStatusSucceeded
	case "build_failed", "update_failed", "canceled", "deactivated":
		return schemas.DeployStatusFailed
	default:
		// created, build_in_progress, update_in_progress, pre_deploy_in_progress, ...
		return schemas.DeployStatusPending
	}
}

package deploy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.openly.dev/pointy"

	"github.com/helvethink/deployctl/pkg/config"
	"github.com/helvethink/deployctl/pkg/ratelimit"
	"github.com/helvethink/deployctl/pkg/schemas"
)

// vercelPollInterval is how often a waited-on deployment is polled for its
// terminal state.
var vercelPollInterval = 5 * time.Second

// Vercel implements Gateway against the Vercel REST API.
type Vercel struct {
	*Client
	TeamID string
}

// vercelDeployment mirrors the subset of the Vercel deployment payload the
// gateway consumes.
type vercelDeployment struct {
	ID         string `json:"id"`
	ReadyState string `json:"readyState"`
	URL        string `json:"url"`
}

// vercelDeployRequest is the payload triggering a new deployment of a project
// from its linked git branch.
type vercelDeployRequest struct {
	Name      string           `json:"name"`
	Target    *string          `json:"target,omitempty"`
	GitSource *vercelGitSource `json:"gitSource,omitempty"`
}

type vercelGitSource struct {
	Type string `json:"type"`
	Ref  string `json:"ref"`
}

// NewVercelGateway creates a Vercel gateway from the given configuration,
// resolving the API token with the documented precedence.
func NewVercelGateway(cfg config.Vercel, rl ratelimit.Limiter) (*Vercel, error) {
	token, err := ResolveToken(cfg.Token, "VERCEL_TOKEN", "vercel")
	if err != nil {
		return nil, err
	}

	return &Vercel{
		Client: NewAPIClient(ClientConfig{
			BaseURL:          cfg.APIURL,
			Token:            token,
			DisableTLSVerify: !cfg.EnableTLSVerify,
			RateLimiter:      rl,
		}),
		TeamID: cfg.TeamID,
	}, nil
}

// Name identifies the platform.
func (v *Vercel) Name() schemas.PlatformName {
	return schemas.PlatformVercel
}

// query returns the team-scoping query parameters, when a team is configured.
func (v *Vercel) query() url.Values {
	q := url.Values{}
	if v.TeamID != "" {
		q.Set("teamId", v.TeamID)
	}

	return q
}

// ServiceExists reports whether the environment's Vercel project exists.
func (v *Vercel) ServiceExists(ctx context.Context, env schemas.Environment) (bool, error) {
	if env.VercelProject == "" {
		return false, nil
	}

	status, err := v.get(ctx, "/v9/projects/"+env.VercelProject, v.query(), nil)
	if err != nil {
		if status == http.StatusNotFound {
			return false, nil
		}

		return false, errors.Wrapf(err, "looking up vercel project '%s'", env.VercelProject)
	}

	return true, nil
}

// TriggerDeploy triggers a deployment of the environment's project from its
// branch. With wait set, it polls the deployment until the platform reports a
// terminal state.
func (v *Vercel) TriggerDeploy(ctx context.Context, env schemas.Environment, revision string, wait bool) (schemas.DeploymentOutcome, error) {
	outcome := schemas.DeploymentOutcome{
		Environment: env.Name,
		Platform:    schemas.PlatformVercel,
		Revision:    revision,
		CreatedAt:   time.Now().UTC(),
	}

	var deployment vercelDeployment

	_, err := v.post(ctx, "/v13/deployments", v.query(), vercelDeployRequest{
		Name:   env.VercelProject,
		Target: pointy.String("production"),
		GitSource: &vercelGitSource{
			Type: "github",
			Ref:  env.Branch,
		},
	}, &deployment)
	if err != nil {
		outcome.Status = schemas.DeployStatusFailed
		outcome.Detail = err.Error()

		return outcome, nil
	}

	outcome.DeployID = deployment.ID
	if deployment.URL != "" {
		outcome.URL = pointy.String("https://" + deployment.URL)
	}

	if !wait {
		outcome.Status = vercelDeployStatus(deployment.ReadyState)

		return outcome, nil
	}

	return v.waitForDeployment(ctx, outcome)
}

// waitForDeployment polls the deployment until it reaches a terminal state or
// the context expires.
func (v *Vercel) waitForDeployment(ctx context.Context, outcome schemas.DeploymentOutcome) (schemas.DeploymentOutcome, error) {
	for {
		var deployment vercelDeployment

		if _, err := v.get(ctx, "/v13/deployments/"+outcome.DeployID, v.query(), &deployment); err != nil {
			outcome.Status = schemas.DeployStatusFailed
			outcome.Detail = err.Error()

			return outcome, nil
		}

		outcome.Status = vercelDeployStatus(deployment.ReadyState)
		if outcome.Status != schemas.DeployStatusPending {
			return outcome, nil
		}

		log.WithContext(ctx).
			WithFields(log.Fields{
				"platform":    "vercel",
				"deploy-id":   outcome.DeployID,
				"ready-state": deployment.ReadyState,
			}).
			Debug("waiting for deployment completion")

		select {
		case <-time.After(vercelPollInterval):
		case <-ctx.Done():
			return outcome, ctx.Err()
		}
	}
}

// ResolveURL returns the configured public URL of the environment, nil when
// none is configured.
func (v *Vercel) ResolveURL(_ context.Context, env schemas.Environment) (*string, error) {
	if env.URL == "" {
		return nil, nil
	}

	return pointy.String(env.URL), nil
}

// ReadinessCheck verifies the Vercel API is reachable and the token accepted.
func (v *Vercel) ReadinessCheck(ctx context.Context) healthcheck.Check {
	return func() error {
		if _, err := v.get(ctx, "/v2/user", v.query(), nil); err != nil {
			return fmt.Errorf("vercel API not ready: %w", err)
		}

		return nil
	}
}

// vercelDeployStatus maps Vercel ready states onto deploy statuses.
func vercelDeployStatus(readyState string) schemas.DeployStatus {
	switch readyState {
	case "READY":
		return schemas.DeployStatusSucceeded
	case "ERROR", "CANCELED":
		return schemas.DeployStatusFailed
	default:
		// QUEUED, BUILDING, INITIALIZING, ...
		return schemas.DeployStatusPending
	}
}

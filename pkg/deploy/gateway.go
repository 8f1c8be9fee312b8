// Package deploy provides the deploy-platform capability interface consumed by
// the promotion and rollback engines, with implementations for the Vercel and
// Render REST APIs.
package deploy

import (
	"context"

	"github.com/heptiolabs/healthcheck"

	"github.com/helvethink/deployctl/pkg/schemas"
)

// Gateway abstracts the deployment operations of one hosting platform. Side
// effects are entirely external; the gateway never retries beyond the small
// bounded transport retry of its HTTP client — retry policy belongs to the
// caller.
type Gateway interface {
	// Name identifies the platform.
	Name() schemas.PlatformName

	// ServiceExists reports whether the environment maps to an existing
	// service on the platform.
	ServiceExists(ctx context.Context, env schemas.Environment) (bool, error)

	// TriggerDeploy triggers a deployment of the environment's service. With
	// wait set, it blocks until the platform reports a terminal state;
	// otherwise it returns immediately with a pending outcome.
	TriggerDeploy(ctx context.Context, env schemas.Environment, revision string, wait bool) (schemas.DeploymentOutcome, error)

	// ResolveURL returns the public URL of the environment, or nil when
	// unknown.
	ResolveURL(ctx context.Context, env schemas.Environment) (*string, error)

	// ReadinessCheck returns a check verifying the platform API is reachable
	// and the credentials are accepted.
	ReadinessCheck(ctx context.Context) healthcheck.Check
}

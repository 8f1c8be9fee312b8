package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/helvethink/deployctl/pkg/config"
	"github.com/helvethink/deployctl/pkg/deploy"
	"github.com/helvethink/deployctl/pkg/git"
	"github.com/helvethink/deployctl/pkg/ratelimit"
	"github.com/helvethink/deployctl/pkg/registry"
	"github.com/helvethink/deployctl/pkg/schemas"
)

// Validate checks whether the application configuration is valid. With
// --check-platforms, it additionally verifies the configured platform APIs
// are reachable with the credentials accepted, and the git remote responds.
func Validate(cliCtx *cli.Context) (int, error) {
	log.Debug("Validating configuration..")

	// Try to configure the application using CLI context.
	// If configuration fails, log the error and return exit code 1.
	cfg, err := configure(cliCtx)
	if err != nil {
		log.WithError(err).Error("Failed to configure")

		return 1, err
	}

	log.Info("configuration is valid")

	if !cliCtx.Bool("check-platforms") {
		return 0, nil
	}

	ctx := context.Background()

	if err = checkPlatforms(ctx, cfg); err != nil {
		return 1, err
	}

	if err = checkGitRemote(ctx, cfg); err != nil {
		return 1, err
	}

	return 0, nil
}

// checkGitRemote verifies the configured repository opens and its remote is
// reachable.
func checkGitRemote(ctx context.Context, cfg config.Config) error {
	c, err := git.NewClient(git.ClientConfig{
		Path:        cfg.Git.Path,
		Remote:      cfg.Git.Remote,
		AuthorName:  cfg.Git.AuthorName,
		AuthorEmail: cfg.Git.AuthorEmail,
	})
	if err != nil {
		log.WithError(err).Error("opening the repository")

		return err
	}

	if err = c.ReadinessCheck(ctx)(); err != nil {
		log.WithField("remote", cfg.Git.Remote).
			WithError(err).
			Error("git remote is not reachable")

		return err
	}

	log.WithField("remote", cfg.Git.Remote).Info("git remote is reachable")

	return nil
}

// checkPlatforms runs the readiness check of every platform referenced by the
// registered environments.
func checkPlatforms(ctx context.Context, cfg config.Config) (err error) {
	var gateways []deploy.Gateway

	for _, env := range registry.New(cfg.Environments).All() {
		if env.UsesPlatform(schemas.PlatformVercel) {
			var vercel *deploy.Vercel

			if vercel, err = deploy.NewVercelGateway(
				cfg.Vercel,
				ratelimit.NewLocalLimiter(cfg.Vercel.MaximumRequestsPerSecond, cfg.Vercel.MaximumRequestsPerSecond),
			); err != nil {
				return
			}

			gateways = append(gateways, vercel)
		}

		if env.UsesPlatform(schemas.PlatformRender) {
			var render *deploy.Render

			if render, err = deploy.NewRenderGateway(
				cfg.Render,
				ratelimit.NewLocalLimiter(cfg.Render.MaximumRequestsPerSecond, cfg.Render.MaximumRequestsPerSecond),
			); err != nil {
				return
			}

			gateways = append(gateways, render)
		}
	}

	checked := map[schemas.PlatformName]bool{}

	for _, gw := range gateways {
		if checked[gw.Name()] {
			continue
		}

		checked[gw.Name()] = true

		if err = gw.ReadinessCheck(ctx)(); err != nil {
			log.WithField("platform", gw.Name()).
				WithError(err).
				Error("platform API is not ready")

			return
		}

		log.WithField("platform", gw.Name()).Info("platform API is ready")
	}

	return
}

package cmd

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"
	"github.com/urfave/cli/v2"

	logger "github.com/helvethink/deployctl/internal/logging"
	"github.com/helvethink/deployctl/pkg/config"
)

var start time.Time

// configure loads and validates configuration from CLI context and sets up logging.
// It returns a populated config object or an error.
func configure(ctx *cli.Context) (cfg config.Config, err error) {
	// Retrieve and store application start time from CLI metadata
	start = ctx.App.Metadata["startTime"].(time.Time)

	// Ensure "config" CLI flag is defined
	assertStringVariableDefined(ctx, "config")

	// Parse the configuration file from the given path
	cfg, err = config.ParseFile(ctx.String("config"))
	if err != nil {
		return
	}

	// Parse global flags like the non-interactive switch
	cfg.Global = parseGlobalFlags(ctx)

	// Override config parameters with any CLI-provided values
	configCliOverrides(ctx, &cfg)

	// Validate the final configuration structure
	if err = cfg.Validate(); err != nil {
		return
	}

	// Initialize logger with the config-defined level and format
	if err = logger.Configure(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}); err != nil {
		return
	}

	// Add OpenTelemetry logging hook to integrate tracing into logs
	log.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
		log.WarnLevel,
	)))

	// Log the general repository and topology configuration
	log.WithFields(
		log.Fields{
			"repository":   cfg.Git.Path,
			"remote":       cfg.Git.Remote,
			"environments": len(cfg.Environments),
		},
	).Info("configured")

	return
}

// parseGlobalFlags parses global CLI flags into the Global config struct.
func parseGlobalFlags(ctx *cli.Context) (cfg config.Global) {
	cfg.NonInteractive = ctx.Bool("non-interactive")

	return
}

// exit logs the execution time and error (if any), then returns a CLI exit code.
func exit(exitCode int, err error) cli.ExitCoder {
	defer log.WithFields(
		log.Fields{
			"execution-time": time.Since(start), // nolint: govet
		},
	).Debug("exited..") // Log execution time when exiting

	if err != nil {
		log.WithError(err).Error() // Log error if present
	}

	return cli.Exit("", exitCode)
}

// ExecWrapper gracefully logs and exits our command functions.
// It wraps a function returning (int, error) into a `cli.ActionFunc` compatible with urfave/cli.
func ExecWrapper(f func(ctx *cli.Context) (int, error)) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		return exit(f(ctx)) // Handles logging and clean exit based on result
	}
}

// configCliOverrides overrides configuration fields with command-line flags if present.
func configCliOverrides(ctx *cli.Context, cfg *config.Config) {
	// Override platform credentials if provided via CLI
	if ctx.String("vercel-token") != "" {
		cfg.Vercel.Token = ctx.String("vercel-token")
	}

	if ctx.String("render-api-key") != "" {
		cfg.Render.Token = ctx.String("render-api-key")
	}

	// Override Redis URL if provided
	if ctx.String("redis-url") != "" {
		cfg.Redis.URL = ctx.String("redis-url")
	}

	// Override the repository location if provided
	if ctx.String("git-path") != "" {
		cfg.Git.Path = ctx.String("git-path")
	}

	// Override logging settings if provided
	if ctx.String("log-level") != "" {
		cfg.Log.Level = ctx.String("log-level")
	}

	if ctx.String("log-format") != "" {
		cfg.Log.Format = ctx.String("log-format")
	}
}

// assertStringVariableDefined ensures a required string flag is set.
// If not, it prints help and exits the program.
func assertStringVariableDefined(ctx *cli.Context, k string) {
	if len(ctx.String(k)) == 0 {
		_ = cli.ShowAppHelp(ctx) // Show CLI help to guide the user

		log.Errorf("'--%s' must be set!", k)
		os.Exit(2) // Exit with code 2 (convention for incorrect usage)
	}
}

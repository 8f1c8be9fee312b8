// Package cli provides the command line application of deployctl.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/helvethink/deployctl/internal/cmd"
)

// Run handles the instantiation of the CLI application.
func Run(version string, args []string) {
	if err := NewApp(version, time.Now()).Run(args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// NewApp configures the CLI application.
func NewApp(version string, start time.Time) (app *cli.App) {
	app = cli.NewApp()
	app.Name = "deployctl"
	app.Version = version
	app.Usage = "Promote and roll back deployment environments backed by git branches"
	app.EnableBashCompletion = true

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			EnvVars: []string{"DEPLOYCTL_CONFIG"},
			Value:   "./deployctl.yml",
			Usage:   "config `file`",
		},
		&cli.StringFlag{
			Name:    "redis-url",
			EnvVars: []string{"DEPLOYCTL_REDIS_URL"},
			Usage:   "redis `url` for the journal and shared rate limits (format: redis[s]://[:password@]host[:port][/db-number][?option=value])",
		},
		&cli.StringFlag{
			Name:    "vercel-token",
			EnvVars: []string{"DEPLOYCTL_VERCEL_TOKEN"},
			Usage:   "vercel API `token`",
		},
		&cli.StringFlag{
			Name:    "render-api-key",
			EnvVars: []string{"DEPLOYCTL_RENDER_API_KEY"},
			Usage:   "render API `key`",
		},
		&cli.StringFlag{
			Name:    "git-path",
			EnvVars: []string{"DEPLOYCTL_GIT_PATH"},
			Usage:   "`path` of the repository clone to operate on",
		},
		&cli.StringFlag{
			Name:    "log-level",
			EnvVars: []string{"DEPLOYCTL_LOG_LEVEL"},
			Usage:   "log `level` (debug,info,warn,fatal,panic)",
		},
		&cli.StringFlag{
			Name:    "log-format",
			EnvVars: []string{"DEPLOYCTL_LOG_FORMAT"},
			Usage:   "log `format` (json or text)",
		},
		&cli.BoolFlag{
			Name:    "non-interactive",
			EnvVars: []string{"DEPLOYCTL_NON_INTERACTIVE"},
			Usage:   "never prompt for confirmation",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "promote",
			Usage:     "merge the source environment's branch into the target's and redeploy it",
			ArgsUsage: "<source> <target>",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "allow-empty",
					Usage: "promote even when the target already contains every revision of the source",
				},
				&cli.BoolFlag{
					Name:  "allow-downgrade",
					Usage: "allow promoting towards an environment ranked lower than the source",
				},
				&cli.BoolFlag{
					Name:    "yes",
					Aliases: []string{"y"},
					Usage:   "skip the confirmation prompt",
				},
				&cli.BoolFlag{
					Name:  "dry-run",
					Usage: "preview the revisions the promotion would carry, mutate nothing",
				},
				&cli.BoolFlag{
					Name:  "wait",
					Usage: "block until the platforms confirm deploy completion",
				},
			},
			Action: cmd.ExecWrapper(cmd.Promote),
		},
		{
			Name:      "rollback",
			Usage:     "undo the last revisions of an environment's branch through inverse commits and redeploy it",
			ArgsUsage: "<environment> [count]",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:    "yes",
					Aliases: []string{"y"},
					Usage:   "skip the confirmation prompt",
				},
				&cli.BoolFlag{
					Name:  "dry-run",
					Usage: "preview the revisions the rollback would undo, mutate nothing",
				},
				&cli.BoolFlag{
					Name:  "wait",
					Usage: "block until the platforms confirm deploy completion",
				},
			},
			Action: cmd.ExecWrapper(cmd.Rollback),
		},
		{
			Name:   "environments",
			Usage:  "list the registered environments in promotion order",
			Action: cmd.ExecWrapper(cmd.Environments),
		},
		{
			Name:      "history",
			Usage:     "show the journaled deployment outcomes of an environment",
			ArgsUsage: "<environment>",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "limit",
					Value: 20,
					Usage: "maximum `number` of outcomes to show",
				},
			},
			Action: cmd.ExecWrapper(cmd.History),
		},
		{
			Name:  "validate",
			Usage: "validate the configuration file",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "check-platforms",
					Usage: "additionally verify the platform APIs and the git remote are reachable",
				},
			},
			Action: cmd.ExecWrapper(cmd.Validate),
		},
	}

	app.Metadata = map[string]interface{}{
		"startTime": start,
	}

	return
}

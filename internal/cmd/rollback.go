package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/helvethink/deployctl/pkg/controller"
	"github.com/helvethink/deployctl/pkg/schemas"
)

// Rollback runs the rollback pipeline on the CLI-provided environment, undoing
// the last revision unless a count is given.
func Rollback(cliCtx *cli.Context) (int, error) {
	cfg, err := configure(cliCtx)
	if err != nil {
		return 1, err
	}

	if cliCtx.NArg() < 1 || cliCtx.NArg() > 2 {
		_ = cli.ShowSubcommandHelp(cliCtx)

		return 1, schemas.InvalidRequestError{Reason: "rollback expects an environment and an optional count: <environment> [count]"}
	}

	count := 1
	if cliCtx.NArg() == 2 {
		// The count must parse before the repository is touched
		if count, err = strconv.Atoi(cliCtx.Args().Get(1)); err != nil {
			return 1, schemas.InvalidRequestError{Reason: fmt.Sprintf("count must be a positive integer, got '%s'", cliCtx.Args().Get(1))}
		}
	}

	ctx := context.Background()

	c, err := controller.New(ctx, cfg, cliCtx.App.Version)
	if err != nil {
		return 1, err
	}

	res, err := c.Rollback(ctx, schemas.RollbackRequest{
		Environment: cliCtx.Args().Get(0),
		Count:       count,
		AutoConfirm: cliCtx.Bool("yes"),
		DryRun:      cliCtx.Bool("dry-run"),
		Wait:        cliCtx.Bool("wait"),
	})

	renderRevisionRange(res.Range)
	renderOutcomes(res.Outcomes)

	if err != nil {
		return 1, err
	}

	if res.DryRun {
		fmt.Fprintf(os.Stdout, "dry run: would roll back the last %d revision(s) of '%s'\n", res.Count, res.Environment)

		return 0, nil
	}

	fmt.Fprintf(os.Stdout, "rolled back '%s' by %d revision(s), now at revision %s\n", res.Environment, res.Count, res.RevertedRevision)

	return 0, nil
}

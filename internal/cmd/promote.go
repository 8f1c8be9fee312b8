package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/helvethink/deployctl/pkg/controller"
	"github.com/helvethink/deployctl/pkg/schemas"
)

// Promote runs the promotion pipeline with the CLI-provided source and target
// environments.
func Promote(cliCtx *cli.Context) (int, error) {
	cfg, err := configure(cliCtx)
	if err != nil {
		return 1, err
	}

	if cliCtx.NArg() != 2 {
		_ = cli.ShowSubcommandHelp(cliCtx)

		return 1, schemas.InvalidRequestError{Reason: "promote expects exactly two arguments: <source> <target>"}
	}

	ctx := context.Background()

	c, err := controller.New(ctx, cfg, cliCtx.App.Version)
	if err != nil {
		return 1, err
	}

	res, err := c.Promote(ctx, schemas.PromotionRequest{
		Source:         cliCtx.Args().Get(0),
		Target:         cliCtx.Args().Get(1),
		AllowEmpty:     cliCtx.Bool("allow-empty"),
		AllowDowngrade: cliCtx.Bool("allow-downgrade"),
		AutoConfirm:    cliCtx.Bool("yes"),
		DryRun:         cliCtx.Bool("dry-run"),
		Wait:           cliCtx.Bool("wait"),
	})

	renderRevisionRange(res.Range)
	renderOutcomes(res.Outcomes)

	if err != nil {
		return 1, err
	}

	if res.DryRun {
		fmt.Fprintf(os.Stdout, "dry run: would promote '%s' to '%s'\n", res.Source, res.Target)

		return 0, nil
	}

	fmt.Fprintf(os.Stdout, "promoted '%s' to '%s' at revision %s\n", res.Source, res.Target, res.MergedRevision)

	return 0, nil
}

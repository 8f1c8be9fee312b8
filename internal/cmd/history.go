package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/helvethink/deployctl/pkg/registry"
	"github.com/helvethink/deployctl/pkg/store"
)

// History prints the journaled deployment outcomes of one environment, most
// recent first.
func History(cliCtx *cli.Context) (int, error) {
	cfg, err := configure(cliCtx)
	if err != nil {
		return 1, err
	}

	if cliCtx.NArg() != 1 {
		_ = cli.ShowSubcommandHelp(cliCtx)

		return 1, fmt.Errorf("history expects exactly one argument: <environment>")
	}

	env, err := registry.New(cfg.Environments).Resolve(cliCtx.Args().Get(0))
	if err != nil {
		return 1, err
	}

	ctx := context.Background()

	// The journal lives in Redis when configured, in the local journal file
	// otherwise
	var redisClient *redis.Client

	if cfg.Redis.URL != "" {
		var opt *redis.Options

		if opt, err = redis.ParseURL(cfg.Redis.URL); err != nil {
			return 1, err
		}

		redisClient = redis.NewClient(opt)
	}

	outcomes, err := store.New(ctx, redisClient, cfg.Journal).Outcomes(ctx, env.Name, cliCtx.Int("limit"))
	if err != nil {
		return 1, err
	}

	if len(outcomes) == 0 {
		fmt.Fprintf(os.Stdout, "no journaled deployments for environment '%s'\n", env.Name)

		return 0, nil
	}

	renderHistory(outcomes)

	return 0, nil
}

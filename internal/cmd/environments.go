package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/helvethink/deployctl/pkg/registry"
)

// Environments lists the registered environments in promotion order, lowest
// rank first.
func Environments(cliCtx *cli.Context) (int, error) {
	cfg, err := configure(cliCtx)
	if err != nil {
		return 1, err
	}

	renderEnvironmentsTable(registry.New(cfg.Environments).All())

	return 0, nil
}

package cmd

import (
	"context"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

// pluginCmd namespaces plugin-contributed subcommands as `plugin <name>
// <cmd> [args…]`. Plugin discovery and loading are out of scope
// here — the core only defines the hook contract and
// dispatch shape, so this reports that no plugin is registered rather than
// attempting to resolve one.
func pluginCmd() *cli.Command {
	return &cli.Command{
		Name:      "plugin",
		Usage:     "Invoke a plugin-contributed subcommand",
		ArgsUsage: "<name> <cmd> [args...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				return errors.New("usage: chkit plugin <name> <cmd> [args...]")
			}
			return errors.Errorf("no plugin named %q is registered", name)
		},
	}
}

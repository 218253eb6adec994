// Package cmd builds chkit's urfave/cli/v3 command tree. Every command here
// is thin orchestration around pkg/: it parses flags, loads the project
// config and schema, calls into pkg/schema, pkg/planner, pkg/render,
// pkg/drift, pkg/store, pkg/runner, and pkg/policy, and renders either a
// human summary or a single JSON document, exactly the shape
// of housekeeper's cmd/housekeeper/cmd package.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/pseudomuto/chkit/pkg/config"
	"github.com/pseudomuto/chkit/pkg/consts"
	"github.com/pseudomuto/chkit/pkg/scope"
)

// state is the resolved global context every subcommand's Action reads,
// populated once by the root command's Before hook — the same
// package-level-variable pattern housekeeper's cmd/housekeeper/cmd/root.go
// uses for currentProject, since urfave/cli/v3 doesn't thread arbitrary
// values through ctx by default here.
type state struct {
	Config     *config.Config
	ConfigPath string
	JSONMode   bool
	Scope      scope.Scope
	Version    string
}

var current *state

// Run builds and executes the chkit CLI application for the given version
// and command-line arguments.
//
// Global flags:
//   - --config: project configuration file path (default chkit.yaml)
//   - --json: emit machine-readable JSON instead of human-readable text
//   - --table: a table selector scoping migrate/drift to matching tables
//     (GLOSSARY: Scope); for generate, a selector that matches no table
//     short-circuits the command, and a selector that matches does not
//     narrow the generated plan
func Run(ctx context.Context, version string, args []string) error {
	app := &cli.Command{
		Name:    "chkit",
		Usage:   "A ClickHouse schema migration toolkit",
		Version: version,
		Description: `chkit canonicalizes a declarative ClickHouse schema, diffs snapshots into
risk-annotated migration plans, detects drift against a live database, and
applies pending migrations through a checksum-verified journal.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the project configuration file",
				Value: consts.ConfigFilename,
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "emit a single JSON document instead of human-readable output",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "table",
				Usage: "comma-separated table selector (glob or db.table) scoping this command",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			configPath := cmd.String("config")

			cfg, err := config.LoadFileOrDefault(configPath)
			if err != nil {
				return ctx, err
			}

			current = &state{
				Config:     cfg,
				ConfigPath: configPath,
				JSONMode:   cmd.Bool("json"),
				Scope:      scope.Parse(cmd.String("table")),
				Version:    version,
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			initCmd(),
			generateCmd(),
			migrateCmd(),
			statusCmd(),
			driftCmd(),
			checkCmd(),
			pluginCmd(),
		},
	}

	return app.Run(ctx, args)
}

// printJSON writes v to stdout as the command's single JSON document
//. encoding/json marshals struct fields in declaration order and map
// keys in sorted order, which is what gives every JSON shape below its
// documented stability: struct field order is fixed by the type, map key
// order is fixed by sorting.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/pseudomuto/chkit/pkg/chclient"
	"github.com/pseudomuto/chkit/pkg/chkerr"
	"github.com/pseudomuto/chkit/pkg/plugin"
	"github.com/pseudomuto/chkit/pkg/runner"
)

// migrateCmd lists or applies pending migrations.
func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"apply"},
		Usage:   "List or apply pending migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "apply", Usage: "execute the pending migration set"},
			&cli.BoolFlag{Name: "execute", Usage: "alias for --apply"},
			&cli.BoolFlag{Name: "allow-destructive", Usage: "permit applying risk=danger operations without interactive confirmation"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runMigrate(ctx, cmd)
		},
	}
}

func runMigrate(ctx context.Context, cmd *cli.Command) error {
	st := current
	cfg := st.Config
	apply := cmd.Bool("apply") || cmd.Bool("execute")

	var conn *chclient.Client
	var execInterface runner.Executor
	if apply {
		client, err := connectClickHouse(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		conn = client
		execInterface = client
	}

	bridge := plugin.NewBridge()
	r := runner.New(cfg.MigrationsDir, journalStore(cfg, conn), execInterface, bridge)

	if !apply {
		return runMigratePlan(ctx, st, r)
	}

	return runMigrateExecute(ctx, cmd, st, r, bridge)
}

func runMigratePlan(ctx context.Context, st *state, r *runner.Runner) error {
	result, err := r.Pending(ctx, st.Scope)
	if err != nil {
		return reportMigrateError(st, err)
	}

	if st.JSONMode {
		return printJSON(map[string]any{
			"mode":     "plan",
			"pending":  result.Pending,
			"warnings": result.Warnings,
		})
	}

	if len(result.Pending) == 0 {
		printf("No pending migrations.\n")
	} else {
		printf("Pending migrations:\n")
		for _, name := range result.Pending {
			printf("  %s\n", name)
		}
	}
	for _, w := range result.Warnings {
		printf("warning: %s\n", w)
	}
	return nil
}

func runMigrateExecute(ctx context.Context, cmd *cli.Command, st *state, r *runner.Runner, bridge *plugin.Bridge) error {
	hc := plugin.NewContext("migrate", st.ConfigPath, st.Scope.Selectors, nil, nil, st.JSONMode)

	opts := runner.ExecuteOptions{AllowDestructive: cmd.Bool("allow-destructive") || st.Config.Safety.AllowDestructive}
	if !opts.AllowDestructive && isInteractive() && !st.JSONMode {
		opts.Confirm = confirmDestructive
	}

	result, err := r.Execute(ctx, hc, st.Scope, opts)
	if err != nil {
		return reportMigrateError(st, err)
	}

	if st.JSONMode {
		return printJSON(map[string]any{
			"mode":     "execute",
			"applied":  result.Applied,
			"warnings": result.Warnings,
		})
	}

	printf("Applied %d migration(s).\n", len(result.Applied))
	for _, name := range result.Applied {
		printf("  %s\n", name)
	}
	for _, w := range result.Warnings {
		printf("warning: %s\n", w)
	}
	return nil
}

// confirmDestructive prompts an interactive TTY user to type "yes" before
// proceeding with a destructive migration set.
func confirmDestructive(ops []chkerr.DestructiveOperation) (bool, error) {
	fmt.Fprintln(os.Stderr, "The following destructive operations are pending:")
	for _, op := range ops {
		fmt.Fprintf(os.Stderr, "  %s: %s (%s)\n", op.Migration, op.Key, op.WarningCode)
	}
	fmt.Fprint(os.Stderr, "Type \"yes\" to proceed: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, nil
	}
	return strings.TrimSpace(line) == "yes", nil
}

func reportMigrateError(st *state, err error) error {
	if !st.JSONMode {
		return err
	}

	switch e := err.(type) {
	case *chkerr.ChecksumMismatch:
		mismatches := make([]map[string]string, len(e.Names))
		for i, name := range e.Names {
			mismatches[i] = map[string]string{"name": name}
		}
		_ = printJSON(map[string]any{"error": "Checksum mismatch", "checksumMismatches": mismatches})
	case *chkerr.DestructiveBlocked:
		_ = printJSON(map[string]any{
			"error":                 "destructive_blocked",
			"destructiveMigrations": e.Migrations,
			"destructiveOperations": e.Operations,
		})
	default:
		_ = printJSON(map[string]any{"error": err.Error()})
	}
	return err
}

package cmd

import (
	"context"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/pseudomuto/chkit/pkg/chclient"
	"github.com/pseudomuto/chkit/pkg/drift"
	"github.com/pseudomuto/chkit/pkg/plugin"
	"github.com/pseudomuto/chkit/pkg/policy"
	"github.com/pseudomuto/chkit/pkg/schema"
	"github.com/pseudomuto/chkit/pkg/store"
)

// errCheckFailed signals a failing policy gate to main, which maps it to
// exit code 1 after the pass/fail result has already been printed.
var errCheckFailed = errors.New("policy check failed")

// checkCmd folds pending migrations, checksum mismatches, live drift, and
// plugin findings into a single pass/fail verdict.
func checkCmd() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Evaluate the project's migration policy gates",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "strict", Usage: "force every built-in gate on regardless of configuration"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runCheck(ctx, cmd)
		},
	}
}

func runCheck(ctx context.Context, cmd *cli.Command) error {
	st := current
	cfg := st.Config

	journal, err := store.ReadJournal(cfg.MetaDir)
	if err != nil {
		return err
	}
	names, err := store.ListMigrations(cfg.MigrationsDir)
	if err != nil {
		return err
	}
	applied := journal.AppliedNames()
	var pending []string
	for _, name := range names {
		if !applied[name] {
			pending = append(pending, name)
		}
	}

	mismatches, err := store.FindChecksumMismatches(cfg.MigrationsDir, journal)
	if err != nil {
		return err
	}

	var report *drift.Report
	if cfg.ClickHouse.Addr != "" {
		expected, err := schema.LoadDefinitionsYAML(cfg.SchemaDir)
		if err != nil {
			return err
		}
		expected = schema.Canonicalize(expected)

		client, err := connectClickHouse(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		actual, err := chclient.Introspect(ctx, client, databaseList(st.Scope, expected))
		if err != nil {
			return err
		}
		report, err = drift.Compare(expected, actual)
		if err != nil {
			return err
		}
	}

	bridge := plugin.NewBridge()
	hc := plugin.NewContext("check", st.ConfigPath, st.Scope.Selectors, nil, nil, st.JSONMode)
	pluginResults, err := bridge.Check(ctx, hc)
	if err != nil {
		return err
	}
	if err := bridge.CheckReport(ctx, hc, pluginResults); err != nil {
		return err
	}

	failOnPending, failOnChecksumMismatch, failOnDrift := cfg.ResolvedCheck(cmd.Bool("strict"))
	result := policy.Evaluate(policy.Config{
		FailOnPending:          failOnPending,
		FailOnChecksumMismatch: failOnChecksumMismatch,
		FailOnDrift:            failOnDrift,
	}, policy.Input{
		Pending:            pending,
		ChecksumMismatches: mismatches,
		DriftReport:        report,
		PluginResults:      pluginResults,
	})

	if st.JSONMode {
		if err := printJSON(map[string]any{
			"passed":       result.Passed,
			"failedChecks": result.FailedChecks,
		}); err != nil {
			return err
		}
	} else if result.Passed {
		printf("All checks passed.\n")
	} else {
		printf("Failed checks:\n")
		for _, c := range result.FailedChecks {
			printf("  %s\n", c)
		}
	}

	if !result.Passed {
		return errCheckFailed
	}
	return nil
}

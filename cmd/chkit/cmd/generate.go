package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/pseudomuto/chkit/pkg/chkerr"
	"github.com/pseudomuto/chkit/pkg/planner"
	"github.com/pseudomuto/chkit/pkg/plugin"
	"github.com/pseudomuto/chkit/pkg/schema"
	"github.com/pseudomuto/chkit/pkg/scope"
	"github.com/pseudomuto/chkit/pkg/store"
)

// generateCmd diffs the project's current schema against the last snapshot
// and materializes the result into a migration file plus an updated
// snapshot.
func generateCmd() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a migration from the current schema",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "migration name (defaults to \"auto\")"},
			&cli.StringFlag{Name: "migration-id", Usage: "override the generated 14-digit migration id"},
			&cli.BoolFlag{Name: "dryrun", Usage: "print the plan without writing any artifacts"},
			&cli.StringFlag{Name: "rename-table", Usage: "comma-separated old_db.old_name=new_db.new_name mappings"},
			&cli.StringFlag{Name: "rename-column", Usage: "comma-separated db.table.old=new mappings"},
			&cli.BoolFlag{Name: "watch", Usage: "watch the migrations directory and re-run generate on change"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("watch") {
				return watchAndRerun(ctx, current.Config.MigrationsDir, func() error {
					return runGenerate(ctx, cmd)
				})
			}
			return runGenerate(ctx, cmd)
		},
	}
}

func runGenerate(ctx context.Context, cmd *cli.Command) error {
	st := current
	cfg := st.Config

	defs, err := schema.LoadDefinitionsYAML(cfg.SchemaDir)
	if err != nil {
		return err
	}

	if issues := schema.Validate(defs); len(issues) > 0 {
		return reportValidationFailed(issues)
	}
	newDefs := schema.Canonicalize(defs)

	snap, err := store.ReadSnapshot(cfg.MetaDir)
	if err != nil {
		return err
	}
	var oldDefs []schema.Definition
	if snap != nil {
		oldDefs = schema.Canonicalize(snap.Definitions)
	}

	if st.Scope.Enabled() {
		matched := matchingTableCount(newDefs, st.Scope)
		if matched == 0 {
			return reportEmptyScope(st, st.Scope.String())
		}
	}

	opts, err := parseRenameOptions(cmd.String("rename-table"), cmd.String("rename-column"))
	if err != nil {
		return err
	}

	plan, err := planner.Plan(oldDefs, newDefs, opts)
	if err != nil {
		return err
	}

	bridge := plugin.NewBridge()
	hc := plugin.NewContext("generate", st.ConfigPath, st.Scope.Selectors, nil, nil, st.JSONMode)
	if newDefs, err = bridge.SchemaLoaded(ctx, hc, newDefs); err != nil {
		return err
	}
	if plan, err = bridge.PlanCreated(ctx, hc, plan); err != nil {
		return err
	}

	if cmd.Bool("dryrun") {
		return reportPlan(st, plan, nil)
	}

	result, genErr := store.GenerateArtifacts(store.GenerateArtifactsInput{
		Definitions:   newDefs,
		MigrationsDir: cfg.MigrationsDir,
		MetaDir:       cfg.MetaDir,
		MigrationName: cmd.String("name"),
		MigrationID:   cmd.String("migration-id"),
		Plan:          plan,
		CLIVersion:    st.Version,
		GeneratedAt:   time.Now().UTC(),
	})
	if genErr != nil {
		return genErr
	}

	return reportPlan(st, plan, result)
}

func matchingTableCount(defs []schema.Definition, sc scope.Scope) int {
	count := 0
	for _, d := range defs {
		if d.Kind != schema.KindTable {
			continue
		}
		if sc.MatchTable(d.Database, d.Name) {
			count++
		}
	}
	return count
}

// parseRenameOptions parses the --rename-table and --rename-column flag
// values into planner.Options.
func parseRenameOptions(renameTable, renameColumn string) (planner.Options, error) {
	var opts planner.Options

	for _, raw := range splitNonEmpty(renameTable) {
		src, dst, ok := strings.Cut(raw, "=")
		if !ok {
			return opts, errors.Errorf("invalid --rename-table mapping %q, expected old_db.old_name=new_db.new_name", raw)
		}
		srcDB, srcName, ok1 := strings.Cut(src, ".")
		dstDB, dstName, ok2 := strings.Cut(dst, ".")
		if !ok1 || !ok2 {
			return opts, errors.Errorf("invalid --rename-table mapping %q, expected old_db.old_name=new_db.new_name", raw)
		}
		opts.TableRenames = append(opts.TableRenames, planner.TableRenameMapping{
			OldDatabase: srcDB, OldName: srcName, NewDatabase: dstDB, NewName: dstName,
		})
	}

	for _, raw := range splitNonEmpty(renameColumn) {
		src, dst, ok := strings.Cut(raw, "=")
		if !ok {
			return opts, errors.Errorf("invalid --rename-column mapping %q, expected db.table.old=new", raw)
		}
		parts := strings.Split(src, ".")
		if len(parts) != 3 {
			return opts, errors.Errorf("invalid --rename-column mapping %q, expected db.table.old=new", raw)
		}
		opts.ColumnRenames = append(opts.ColumnRenames, planner.ColumnRenameMapping{
			Database: parts[0], Table: parts[1], From: parts[2], To: dst,
		})
	}

	return opts, nil
}

func splitNonEmpty(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func reportValidationFailed(issues []chkerr.Issue) error {
	if current.JSONMode {
		_ = printJSON(map[string]any{"error": "validation_failed", "issues": issues})
		return &chkerr.ValidationFailed{Issues: issues}
	}
	return &chkerr.ValidationFailed{Issues: issues}
}

// reportEmptyScope implements unified empty-scope envelope for
// generate --dryrun (and generate in general) when an active --table
// selector matches zero tables: short-circuit before diffing.
func reportEmptyScope(st *state, selector string) error {
	warning := "No tables matched selector " + selector
	if st.JSONMode {
		return printJSON(map[string]any{
			"scope": map[string]any{
				"enabled":        true,
				"matchCount":     0,
				"operationCount": 0,
			},
			"warning": warning,
		})
	}
	printf("%s\n", warning)
	return nil
}

func reportPlan(st *state, plan *planner.MigrationPlan, result *store.GenerateArtifactsResult) error {
	if st.JSONMode {
		out := map[string]any{
			"operations":        plan.Operations,
			"riskSummary":       plan.RiskSummary,
			"renameSuggestions": plan.RenameSuggestions,
		}
		if result != nil {
			out["migrationFile"] = result.MigrationFile
		}
		return printJSON(out)
	}

	if len(plan.Operations) == 0 {
		printf("No schema changes detected.\n")
		return nil
	}

	printf("Plan: %d safe, %d caution, %d danger\n",
		plan.RiskSummary.Safe, plan.RiskSummary.Caution, plan.RiskSummary.Danger)
	for _, op := range plan.Operations {
		printf("  [%s] %s %s\n", op.Risk, op.Type, op.Key)
	}
	for _, rs := range plan.RenameSuggestions {
		printf("  suggestion: rename %s.%s.%s -> %s (%s)\n", rs.Database, rs.Table, rs.From, rs.To, rs.Reason)
	}
	if result != nil && result.MigrationFile != "" {
		printf("Wrote %s\n", result.MigrationFile)
	}
	return nil
}

// watchAndRerun calls run once, then again on every write, create, remove or
// rename event in dir (each event triggers its own run; events are not
// debounced), until ctx is cancelled — a CLI-layer convenience on top
// of generate, grounded on the pack's fsnotify usage for directory watches
// rather than core behavior.
func watchAndRerun(ctx context.Context, dir string, run func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating filesystem watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "watching %s", dir)
	}

	if err := run(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := run(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return errors.Wrap(err, "watching migrations directory")
		}
	}
}

package cmd

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/pseudomuto/chkit/pkg/chclient"
	"github.com/pseudomuto/chkit/pkg/drift"
	"github.com/pseudomuto/chkit/pkg/schema"
	"github.com/pseudomuto/chkit/pkg/scope"
)

// driftCmd compares the declared schema against what is actually live in
// ClickHouse.
func driftCmd() *cli.Command {
	return &cli.Command{
		Name:  "drift",
		Usage: "Compare the declared schema against the live ClickHouse database",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runDrift(ctx, cmd)
		},
	}
}

func runDrift(ctx context.Context, cmd *cli.Command) error {
	st := current
	cfg := st.Config

	expected, err := schema.LoadDefinitionsYAML(cfg.SchemaDir)
	if err != nil {
		return err
	}
	expected = schema.Canonicalize(expected)

	if st.Scope.Enabled() {
		matched := matchingTableCount(expected, st.Scope)
		if matched == 0 {
			return reportEmptyScope(st, st.Scope.String())
		}
		expected = filterByScope(expected, st.Scope)
	}

	client, err := connectClickHouse(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	actual, err := chclient.Introspect(ctx, client, databaseList(st.Scope, expected))
	if err != nil {
		return err
	}

	report, err := drift.Compare(expected, actual)
	if err != nil {
		return err
	}

	if st.JSONMode {
		return printJSON(report)
	}

	if !report.Drifted {
		printf("No drift detected.\n")
		return nil
	}

	printf("Drift detected:\n")
	for _, od := range report.ObjectDrift {
		printf("  [%s] %s\n", od.Code, od.Object)
	}
	for _, td := range report.TableDrift {
		printf("  %s: %v\n", td.Object, td.ReasonCodes)
	}
	return nil
}

func filterByScope(defs []schema.Definition, sc scope.Scope) []schema.Definition {
	var out []schema.Definition
	for _, d := range defs {
		if d.Kind != schema.KindTable || sc.MatchTable(d.Database, d.Name) {
			out = append(out, d)
		}
	}
	return out
}

// databaseList narrows introspection to the databases referenced by the
// expected definitions (plus any scope-pinned literal databases), keeping
// a live-introspection pass from scanning every database on the server.
func databaseList(sc scope.Scope, expected []schema.Definition) []string {
	seen := map[string]bool{}
	for _, d := range expected {
		seen[d.Database] = true
	}
	for db := range sc.Databases() {
		seen[db] = true
	}

	out := make([]string, 0, len(seen))
	for db := range seen {
		out = append(out, db)
	}
	return out
}

package planner_test

import (
	"testing"

	"github.com/pseudomuto/chkit/pkg/planner"
	"github.com/pseudomuto/chkit/pkg/schema"
	"github.com/stretchr/testify/require"
)

func usersTable(cols []schema.Column, engine string, orderBy []string) schema.Definition {
	return schema.Definition{
		Kind:     schema.KindTable,
		Database: "app",
		Name:     "users",
		Table: &schema.Table{
			Columns:    cols,
			Engine:     engine,
			PrimaryKey: []string{"id"},
			OrderBy:    orderBy,
		},
	}
}

func TestDiffAddTableFromEmpty(t *testing.T) {
	newDefs := []schema.Definition{
		usersTable([]schema.Column{
			{Name: "id", Type: "UInt64"},
			{Name: "email", Type: "String"},
		}, "MergeTree", []string{"id"}),
	}

	plan := planner.Diff(nil, schema.Canonicalize(newDefs))

	require.Len(t, plan.Operations, 2)
	require.Equal(t, "database:app", plan.Operations[0].Key)
	require.Equal(t, planner.OpCreateDatabase, plan.Operations[0].Type)
	require.Equal(t, "table:app.users", plan.Operations[1].Key)
	require.Equal(t, planner.OpCreateTable, plan.Operations[1].Type)
	require.Equal(t, planner.RiskSummary{Safe: 2, Caution: 0, Danger: 0}, plan.RiskSummary)
}

func TestDiffAddSafeColumn(t *testing.T) {
	old := []schema.Definition{
		usersTable([]schema.Column{
			{Name: "id", Type: "UInt64"},
			{Name: "email", Type: "String"},
		}, "MergeTree", []string{"id"}),
	}
	new := []schema.Definition{
		usersTable([]schema.Column{
			{Name: "id", Type: "UInt64"},
			{Name: "email", Type: "String"},
			{Name: "source", Type: "String"},
		}, "MergeTree", []string{"id"}),
	}

	plan := planner.Diff(schema.Canonicalize(old), schema.Canonicalize(new))

	require.Len(t, plan.Operations, 1)
	require.Equal(t, "table:app.users:column:source", plan.Operations[0].Key)
	require.Equal(t, planner.OpAlterTableAddColumn, plan.Operations[0].Type)
	require.Equal(t, planner.RiskSafe, plan.Operations[0].Risk)
}

func TestDiffSelfDiffIsEmpty(t *testing.T) {
	defs := schema.Canonicalize([]schema.Definition{
		usersTable([]schema.Column{
			{Name: "id", Type: "UInt64"},
			{Name: "email", Type: "String"},
		}, "MergeTree", []string{"id"}),
	})

	plan := planner.Diff(defs, defs)
	require.Empty(t, plan.Operations)
	require.Equal(t, planner.RiskSummary{}, plan.RiskSummary)
}

func TestDiffRecreateOnEngineChange(t *testing.T) {
	old := []schema.Definition{
		usersTable([]schema.Column{{Name: "id", Type: "UInt64"}}, "MergeTree", []string{"id"}),
	}
	new := []schema.Definition{
		usersTable([]schema.Column{{Name: "id", Type: "UInt64"}}, "ReplacingMergeTree", []string{"id"}),
	}

	plan := planner.Diff(schema.Canonicalize(old), schema.Canonicalize(new))

	require.Len(t, plan.Operations, 2)
	require.Equal(t, planner.OpDropTable, plan.Operations[0].Type)
	require.Equal(t, planner.RiskDanger, plan.Operations[0].Risk)
	require.Equal(t, planner.OpCreateTable, plan.Operations[1].Type)
	require.Equal(t, planner.RiskSafe, plan.Operations[1].Risk)
}

func TestPlanHeuristicRenameSuggestion(t *testing.T) {
	old := []schema.Definition{
		usersTable([]schema.Column{
			{Name: "id", Type: "UInt64"},
			{Name: "email", Type: "String"},
		}, "MergeTree", []string{"id"}),
	}
	new := []schema.Definition{
		usersTable([]schema.Column{
			{Name: "id", Type: "UInt64"},
			{Name: "user_email", Type: "String"},
		}, "MergeTree", []string{"id"}),
	}

	plan, err := planner.Plan(schema.Canonicalize(old), schema.Canonicalize(new), planner.Options{})
	require.NoError(t, err)

	var hasDrop, hasAdd bool
	for _, op := range plan.Operations {
		if op.Key == "table:app.users:column:email" && op.Type == planner.OpAlterTableDropColumn {
			hasDrop = true
		}
		if op.Key == "table:app.users:column:user_email" && op.Type == planner.OpAlterTableAddColumn {
			hasAdd = true
		}
	}
	require.True(t, hasDrop)
	require.True(t, hasAdd)

	require.Len(t, plan.RenameSuggestions, 1)
	suggestion := plan.RenameSuggestions[0]
	require.Equal(t, "column", suggestion.Kind)
	require.Equal(t, "email", suggestion.From)
	require.Equal(t, "user_email", suggestion.To)
	require.Equal(t, "high", suggestion.Confidence)
}

func TestPlanExplicitColumnRenameMergesPlan(t *testing.T) {
	old := []schema.Definition{
		usersTable([]schema.Column{
			{Name: "id", Type: "UInt64"},
			{Name: "email", Type: "String"},
		}, "MergeTree", []string{"id"}),
	}
	new := []schema.Definition{
		usersTable([]schema.Column{
			{Name: "id", Type: "UInt64"},
			{Name: "user_email", Type: "String"},
		}, "MergeTree", []string{"id"}),
	}

	plan, err := planner.Plan(schema.Canonicalize(old), schema.Canonicalize(new), planner.Options{
		ColumnRenames: []planner.ColumnRenameMapping{
			{Database: "app", Table: "users", From: "email", To: "user_email"},
		},
	})
	require.NoError(t, err)

	require.Len(t, plan.Operations, 1)
	require.Equal(t, planner.OpAlterTableRenameColumn, plan.Operations[0].Type)
	require.Equal(t, "table:app.users:column_rename:email:user_email", plan.Operations[0].Key)
	require.Empty(t, plan.RenameSuggestions)
}

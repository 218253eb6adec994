package drift_test

import (
	"testing"

	"github.com/pseudomuto/chkit/pkg/drift"
	"github.com/pseudomuto/chkit/pkg/schema"
	"github.com/stretchr/testify/require"
)

func TestCompareNoDrift(t *testing.T) {
	defs := []schema.Definition{
		{
			Kind: schema.KindTable, Database: "app", Name: "users",
			Table: &schema.Table{
				Columns: []schema.Column{{Name: "id", Type: "UInt64"}, {Name: "email", Type: "String"}},
				Engine:  "MergeTree", OrderBy: []string{"id"},
			},
		},
	}

	report, err := drift.Compare(defs, defs)
	require.NoError(t, err)
	require.False(t, report.Drifted)
	require.Empty(t, report.ObjectDrift)
	require.Empty(t, report.TableDrift)
}

func TestCompareDetectsExtraColumnAndExtraView(t *testing.T) {
	expected := []schema.Definition{
		{
			Kind: schema.KindTable, Database: "app", Name: "users",
			Table: &schema.Table{
				Columns: []schema.Column{{Name: "id", Type: "UInt64"}, {Name: "email", Type: "String"}},
				Engine:  "MergeTree", OrderBy: []string{"id"},
			},
		},
	}

	actual := []schema.Definition{
		{
			Kind: schema.KindTable, Database: "app", Name: "users",
			Table: &schema.Table{
				Columns: []schema.Column{
					{Name: "id", Type: "UInt64"},
					{Name: "email", Type: "String"},
					{Name: "rogue", Type: "String"},
				},
				Engine: "MergeTree", OrderBy: []string{"id"},
			},
		},
		{
			Kind: schema.KindView, Database: "app", Name: "manual_view",
			View: &schema.View{As: "select 1"},
		},
	}

	report, err := drift.Compare(expected, actual)
	require.NoError(t, err)
	require.True(t, report.Drifted)

	require.Len(t, report.ObjectDrift, 1)
	require.Equal(t, "extra_object", report.ObjectDrift[0].Code)
	require.Equal(t, "view:app.manual_view", report.ObjectDrift[0].Object)

	require.Len(t, report.TableDrift, 1)
	require.Contains(t, report.TableDrift[0].ReasonCodes, "columns")
	require.Contains(t, report.TableDrift[0].Details["columns"], "extra_column:rogue")
}

func TestEngineEquivalenceTreatsSharedMergeTreeAsEquivalent(t *testing.T) {
	expected := []schema.Definition{
		{
			Kind: schema.KindTable, Database: "app", Name: "t",
			Table: &schema.Table{Columns: []schema.Column{{Name: "id", Type: "UInt64"}}, Engine: "MergeTree()", OrderBy: []string{"id"}},
		},
	}
	actual := []schema.Definition{
		{
			Kind: schema.KindTable, Database: "app", Name: "t",
			Table: &schema.Table{Columns: []schema.Column{{Name: "id", Type: "UInt64"}}, Engine: "SharedMergeTree", OrderBy: []string{"id"}},
		},
	}

	report, err := drift.Compare(expected, actual)
	require.NoError(t, err)
	require.False(t, report.Drifted)
}

func TestKeyClauseEqualIgnoresBackticksAndOuterParens(t *testing.T) {
	expected := []schema.Definition{
		{
			Kind: schema.KindTable, Database: "app", Name: "t",
			Table: &schema.Table{Columns: []schema.Column{{Name: "a", Type: "UInt64"}}, Engine: "MergeTree", OrderBy: []string{"(`a`)"}},
		},
	}
	actual := []schema.Definition{
		{
			Kind: schema.KindTable, Database: "app", Name: "t",
			Table: &schema.Table{Columns: []schema.Column{{Name: "a", Type: "UInt64"}}, Engine: "MergeTree", OrderBy: []string{"a"}},
		},
	}

	report, err := drift.Compare(expected, actual)
	require.NoError(t, err)
	require.False(t, report.Drifted)
}

package schema_test

import (
	"testing"

	"github.com/pseudomuto/chkit/pkg/schema"
	"github.com/stretchr/testify/require"
)

func TestValidateDetectsDuplicateObjectName(t *testing.T) {
	defs := []schema.Definition{
		{Kind: schema.KindTable, Database: "analytics", Name: "events", Table: &schema.Table{}},
		{Kind: schema.KindTable, Database: "analytics", Name: "events", Table: &schema.Table{}},
	}

	issues := schema.Validate(defs)
	require.Len(t, issues, 1)
	require.Equal(t, "duplicate_object_name", issues[0].Code)
}

func TestValidateDetectsDuplicateColumnAndKeyIssues(t *testing.T) {
	defs := []schema.Definition{
		{
			Kind:     schema.KindTable,
			Database: "analytics",
			Name:     "events",
			Table: &schema.Table{
				Columns: []schema.Column{
					{Name: "id", Type: "UInt64"},
					{Name: "id", Type: "UInt64"},
					{Name: "ts", Type: "DateTime"},
				},
				OrderBy:    []string{"ts", "missing_col"},
				PrimaryKey: []string{"id"},
				Indexes: []schema.Index{
					{Name: "idx1", Expression: "ts"},
					{Name: "idx1", Expression: "id"},
				},
				Projections: []schema.Projection{
					{Name: "proj1", Query: "select 1"},
					{Name: "proj1", Query: "select 2"},
				},
			},
		},
	}

	issues := schema.Validate(defs)

	codes := make(map[string]int)
	for _, issue := range issues {
		codes[issue.Code]++
	}

	require.Equal(t, 1, codes["duplicate_column_name"])
	require.Equal(t, 1, codes["duplicate_index_name"])
	require.Equal(t, 1, codes["duplicate_projection_name"])
	require.Equal(t, 1, codes["order_by_missing_column"])
	require.Zero(t, codes["primary_key_missing_column"])
}

func TestValidateIgnoresNonIdentifierKeyExpressions(t *testing.T) {
	defs := []schema.Definition{
		{
			Kind:     schema.KindTable,
			Database: "analytics",
			Name:     "events",
			Table: &schema.Table{
				Columns:    []schema.Column{{Name: "ts", Type: "DateTime"}},
				PrimaryKey: []string{"toYYYYMM(ts)"},
			},
		},
	}

	issues := schema.Validate(defs)
	require.Empty(t, issues)
}

package schema_test

import (
	"testing"

	"github.com/pseudomuto/chkit/pkg/schema"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeSortsAndDeduplicates(t *testing.T) {
	defs := []schema.Definition{
		{Kind: schema.KindView, Database: "analytics", Name: "z_view", View: &schema.View{As: "select 1"}},
		{Kind: schema.KindTable, Database: "analytics", Name: "events", Table: &schema.Table{Engine: "MergeTree"}},
		{Kind: schema.KindTable, Database: "analytics", Name: "events", Table: &schema.Table{Engine: "ReplacingMergeTree"}},
	}

	got := schema.Canonicalize(defs)
	require.Len(t, got, 2)
	require.Equal(t, schema.KindTable, got[0].Kind)
	require.Equal(t, "ReplacingMergeTree", got[0].Table.Engine, "last occurrence wins for identical identity")
	require.Equal(t, schema.KindView, got[1].Kind)
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	defs := []schema.Definition{
		{
			Kind:     schema.KindTable,
			Database: "  analytics ",
			Name:     "events",
			Table: &schema.Table{
				Engine:  "  MergeTree ",
				OrderBy: []string{"  ts  ", "id"},
				Indexes: []schema.Index{
					{Name: "b_idx", Expression: "b"},
					{Name: "a_idx", Expression: "a  like   'x' "},
				},
			},
		},
	}

	once := schema.Canonicalize(defs)
	twice := schema.Canonicalize(once)
	require.Equal(t, once, twice)
	require.Equal(t, "analytics", once[0].Database)
	require.Equal(t, "MergeTree", once[0].Table.Engine)
	require.Equal(t, "a_idx", once[0].Table.Indexes[0].Name)
	require.Equal(t, "a like 'x'", once[0].Table.Indexes[0].Expression)
}

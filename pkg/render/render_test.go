package render_test

import (
	"testing"

	"github.com/pseudomuto/chkit/pkg/render"
	"github.com/pseudomuto/chkit/pkg/schema"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/assert"
)

func TestCreateTable(t *testing.T) {
	table := schema.Table{
		Columns: []schema.Column{
			{Name: "id", Type: "UInt64"},
			{Name: "email", Type: "String", Default: "fn:''"},
		},
		Engine:  "MergeTree",
		OrderBy: []string{"id"},
	}

	got := render.CreateTable("app", "users", table)
	want := "CREATE TABLE IF NOT EXISTS app.users (id UInt64, email String DEFAULT '') ENGINE = MergeTree ORDER BY (id);"
	assert.Equal(t, got, want)
}

func TestCreateTableWithCompoundOrderBy(t *testing.T) {
	table := schema.Table{
		Columns: []schema.Column{
			{Name: "a", Type: "UInt64"},
			{Name: "b", Type: "UInt64"},
			{Name: "c", Type: "UInt64"},
		},
		Engine:  "MergeTree",
		OrderBy: []string{"a, b, (c, d)"},
	}

	got := render.CreateTable("app", "t", table)
	require.Contains(t, got, "ORDER BY (a, b, (c, d))")
}

func TestAddColumnUsesIfNotExists(t *testing.T) {
	got := render.AddColumn("app", "users", schema.Column{Name: "source", Type: "String"})
	require.Equal(t, "ALTER TABLE app.users ADD COLUMN IF NOT EXISTS source String;", got)
}

func TestDropColumnUsesIfExists(t *testing.T) {
	got := render.DropColumn("app", "users", "legacy")
	require.Equal(t, "ALTER TABLE app.users DROP COLUMN IF EXISTS legacy;", got)
}

func TestRenameColumn(t *testing.T) {
	got := render.RenameColumn("app", "users", "email", "user_email")
	require.Equal(t, "ALTER TABLE app.users RENAME COLUMN email TO user_email;", got)
}

func TestModifyTTLRemovesWhenNil(t *testing.T) {
	got := render.ModifyTTL("app", "users", nil)
	require.Equal(t, "ALTER TABLE app.users REMOVE TTL;", got)
}

func TestModifyTTLWithValue(t *testing.T) {
	ttl := "ts + INTERVAL 30 DAY"
	got := render.ModifyTTL("app", "users", &ttl)
	require.Equal(t, "ALTER TABLE app.users MODIFY TTL ts + INTERVAL 30 DAY;", got)
}

func TestQualifiedIdentifierQuotesComplexNames(t *testing.T) {
	got := render.DropTable("app", "weird-name")
	require.Equal(t, "DROP TABLE IF EXISTS app.`weird-name`;", got)
}

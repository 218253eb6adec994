package markers_test

import (
	"testing"

	"github.com/pseudomuto/chkit/pkg/markers"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	sql := "-- chkit migration 1.2.3\n" +
		"-- operation: create_database key=database:app risk=safe\n" +
		"CREATE DATABASE IF NOT EXISTS app;\n" +
		"\n" +
		"  -- operation: drop_table key=table:app.users risk=danger\n" +
		"DROP TABLE IF EXISTS app.users;\n"

	got := markers.Parse(sql)
	require.Len(t, got, 2)
	require.Equal(t, markers.Marker{Type: "create_database", Key: "database:app", Risk: "safe"}, got[0])
	require.Equal(t, markers.Marker{Type: "drop_table", Key: "table:app.users", Risk: "danger"}, got[1])
}

func TestParseIgnoresMalformedLines(t *testing.T) {
	sql := "-- operation: create_database key=database:app\n" + // missing risk
		"-- just a comment\n"

	require.Empty(t, markers.Parse(sql))
}

func TestTableFromKey(t *testing.T) {
	table, ok := markers.TableFromKey("table:app.users:column:source")
	require.True(t, ok)
	require.Equal(t, "app.users", table)

	_, ok = markers.TableFromKey("database:app")
	require.False(t, ok)
}

func TestDatabaseFromKey(t *testing.T) {
	db, ok := markers.DatabaseFromKey("database:app")
	require.True(t, ok)
	require.Equal(t, "app", db)
}

package runner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pseudomuto/chkit/pkg/chkerr"
	"github.com/pseudomuto/chkit/pkg/plugin"
	"github.com/pseudomuto/chkit/pkg/runner"
	"github.com/pseudomuto/chkit/pkg/scope"
	"github.com/pseudomuto/chkit/pkg/store"
)

type fakeExecutor struct {
	executed []string
	failOn   string
}

func (f *fakeExecutor) Exec(_ context.Context, query string, _ ...any) error {
	f.executed = append(f.executed, query)
	if f.failOn != "" && query == f.failOn {
		return assertErr{"boom"}
	}
	return nil
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }

func writeMigration(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestExtractStatementsSplitsIgnoringQuotedSemicolons(t *testing.T) {
	sql := "-- operation: create_table key=table:app.users risk=safe\n" +
		"CREATE TABLE app.users (id UInt64, note String DEFAULT 'a;b') ENGINE = MergeTree ORDER BY (id);\n" +
		"\n" +
		"ALTER TABLE app.users COMMENT COLUMN note 'semi;colon `backtick;too`';\n"

	got := runner.ExtractStatements(sql)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "CREATE TABLE app.users")
	assert.Contains(t, got[1], "COMMENT COLUMN note")
}

func TestPendingComputesUnappliedFiles(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000_a.sql", "-- operation: create_database key=database:app risk=safe\nCREATE DATABASE IF NOT EXISTS app;\n")
	writeMigration(t, dir, "20240102000000_b.sql", "-- operation: create_table key=table:app.users risk=safe\nCREATE TABLE IF NOT EXISTS app.users (id UInt64) ENGINE = MergeTree ORDER BY (id);\n")

	metaDir := t.TempDir()
	js := store.FileJournalStore{MetaDir: metaDir}
	require.NoError(t, store.WriteJournal(metaDir, store.Journal{Version: 1, Applied: []store.JournalEntry{{Name: "20240101000000_a.sql", Checksum: store.ChecksumSQL(mustRead(t, dir, "20240101000000_a.sql"))}}}))

	r := runner.New(dir, js, nil, nil)
	result, err := r.Pending(context.Background(), scope.Scope{})
	require.NoError(t, err)
	assert.Equal(t, []string{"20240102000000_b.sql"}, result.Pending)
}

func mustRead(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestPendingChecksumMismatchAborts(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000_a.sql", "CREATE DATABASE IF NOT EXISTS app;\n")

	metaDir := t.TempDir()
	js := store.FileJournalStore{MetaDir: metaDir}
	require.NoError(t, store.WriteJournal(metaDir, store.Journal{Version: 1, Applied: []store.JournalEntry{{Name: "20240101000000_a.sql", Checksum: "wrong"}}}))

	r := runner.New(dir, js, nil, nil)
	_, err := r.Pending(context.Background(), scope.Scope{})
	require.Error(t, err)
	var mismatch *chkerr.ChecksumMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"20240101000000_a.sql"}, mismatch.Names)
}

func TestPendingScopeFiltersByTable(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000_a.sql", "-- operation: create_table key=table:app.users risk=safe\nCREATE TABLE app.users (id UInt64) ENGINE = MergeTree ORDER BY (id);\n")
	writeMigration(t, dir, "20240102000000_b.sql", "-- operation: create_table key=table:billing.invoices risk=safe\nCREATE TABLE billing.invoices (id UInt64) ENGINE = MergeTree ORDER BY (id);\n")

	metaDir := t.TempDir()
	js := store.FileJournalStore{MetaDir: metaDir}

	r := runner.New(dir, js, nil, nil)
	result, err := r.Pending(context.Background(), scope.Parse("app.*"))
	require.NoError(t, err)
	assert.Equal(t, []string{"20240101000000_a.sql"}, result.Pending)
}

func TestPendingScopeIncludesUnannotatedFileWithWarning(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000_a.sql", "CREATE DATABASE IF NOT EXISTS app;\n")

	metaDir := t.TempDir()
	js := store.FileJournalStore{MetaDir: metaDir}

	r := runner.New(dir, js, nil, nil)
	result, err := r.Pending(context.Background(), scope.Parse("app.*"))
	require.NoError(t, err)
	assert.Equal(t, []string{"20240101000000_a.sql"}, result.Pending)
	assert.NotEmpty(t, result.Warnings)
}

func TestExecuteAppliesAndJournalsInOrder(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000_a.sql", "-- operation: create_database key=database:app risk=safe\nCREATE DATABASE IF NOT EXISTS app;\n")
	writeMigration(t, dir, "20240102000000_b.sql", "-- operation: create_table key=table:app.users risk=safe\nCREATE TABLE IF NOT EXISTS app.users (id UInt64) ENGINE = MergeTree ORDER BY (id);\n")

	metaDir := t.TempDir()
	js := store.FileJournalStore{MetaDir: metaDir}
	exec := &fakeExecutor{}

	r := runner.New(dir, js, exec, plugin.NewBridge())
	hc := plugin.NewContext("migrate", "", nil, nil, nil, false)
	result, err := r.Execute(context.Background(), hc, scope.Scope{}, runner.ExecuteOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"20240101000000_a.sql", "20240102000000_b.sql"}, result.Applied)
	assert.Len(t, exec.executed, 2)

	journal, err := store.ReadJournal(metaDir)
	require.NoError(t, err)
	assert.Len(t, journal.Applied, 2)
}

func TestExecuteBlocksOnDestructiveWithoutAllow(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000_a.sql", "-- operation: drop_table key=table:app.users risk=danger\nDROP TABLE IF EXISTS app.users;\n")

	metaDir := t.TempDir()
	js := store.FileJournalStore{MetaDir: metaDir}
	exec := &fakeExecutor{}

	r := runner.New(dir, js, exec, nil)
	hc := plugin.NewContext("migrate", "", nil, nil, nil, false)
	_, err := r.Execute(context.Background(), hc, scope.Scope{}, runner.ExecuteOptions{})
	require.Error(t, err)

	var blocked *chkerr.DestructiveBlocked
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, []string{"20240101000000_a.sql"}, blocked.Migrations)
	assert.Equal(t, "drop_table_data_loss", blocked.Operations[0].WarningCode)
	assert.Empty(t, exec.executed)
}

func TestExecuteAllowDestructiveProceeds(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000_a.sql", "-- operation: drop_table key=table:app.users risk=danger\nDROP TABLE IF EXISTS app.users;\n")

	metaDir := t.TempDir()
	js := store.FileJournalStore{MetaDir: metaDir}
	exec := &fakeExecutor{}

	r := runner.New(dir, js, exec, nil)
	hc := plugin.NewContext("migrate", "", nil, nil, nil, false)
	result, err := r.Execute(context.Background(), hc, scope.Scope{}, runner.ExecuteOptions{AllowDestructive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"20240101000000_a.sql"}, result.Applied)
}

func TestExecuteWithoutConnectionFails(t *testing.T) {
	dir := t.TempDir()
	metaDir := t.TempDir()
	js := store.FileJournalStore{MetaDir: metaDir}

	r := runner.New(dir, js, nil, nil)
	hc := plugin.NewContext("migrate", "", nil, nil, nil, false)
	_, err := r.Execute(context.Background(), hc, scope.Scope{}, runner.ExecuteOptions{})
	require.ErrorIs(t, err, chkerr.ErrMissingClickHouseConfig)
}

func TestExecuteStopsJournalingOnFailureMidFile(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20240101000000_a.sql", "-- operation: create_database key=database:app risk=safe\nCREATE DATABASE IF NOT EXISTS app;\n")
	writeMigration(t, dir, "20240102000000_b.sql", "-- operation: create_table key=table:app.users risk=safe\nCREATE TABLE app.users (id UInt64) ENGINE = MergeTree ORDER BY (id);\n")

	metaDir := t.TempDir()
	js := store.FileJournalStore{MetaDir: metaDir}
	exec := &fakeExecutor{failOn: "CREATE TABLE app.users (id UInt64) ENGINE = MergeTree ORDER BY (id)"}

	r := runner.New(dir, js, exec, nil)
	hc := plugin.NewContext("migrate", "", nil, nil, nil, false)
	_, err := r.Execute(context.Background(), hc, scope.Scope{}, runner.ExecuteOptions{})
	require.Error(t, err)

	journal, err := store.ReadJournal(metaDir)
	require.NoError(t, err)
	require.Len(t, journal.Applied, 1)
	assert.Equal(t, "20240101000000_a.sql", journal.Applied[0].Name)
}

package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pseudomuto/chkit/pkg/consts"
)

const usersSchemaYAML = `definitions:
  - kind: table
    database: app
    name: users
    table:
      columns:
        - name: id
          type: UInt64
        - name: email
          type: String
      engine: MergeTree
      orderBy: [id]
`

func writeSchema(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.yml"), []byte(content), consts.ModeFile))
}

func TestRun_GenerateWritesMigrationAndSnapshot(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	require.NoError(t, Run(context.Background(), "test", []string{"chkit", "init"}))
	writeSchema(t, filepath.Join(tmpDir, consts.DefaultSchemaDir), usersSchemaYAML)

	require.NoError(t, Run(context.Background(), "test", []string{"chkit", "generate", "--name", "create_users"}))

	migrations, err := os.ReadDir(filepath.Join(tmpDir, consts.DefaultMigrationsDir))
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	require.Contains(t, migrations[0].Name(), "create_users")

	require.FileExists(t, filepath.Join(tmpDir, consts.DefaultMetaDir, consts.SnapshotFilename))
}

func TestRun_GenerateDryRunWritesNothing(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	require.NoError(t, Run(context.Background(), "test", []string{"chkit", "init"}))
	writeSchema(t, filepath.Join(tmpDir, consts.DefaultSchemaDir), usersSchemaYAML)

	require.NoError(t, Run(context.Background(), "test", []string{"chkit", "generate", "--dryrun"}))

	migrations, err := os.ReadDir(filepath.Join(tmpDir, consts.DefaultMigrationsDir))
	require.NoError(t, err)
	require.Empty(t, migrations)

	_, err = os.Stat(filepath.Join(tmpDir, consts.DefaultMetaDir, consts.SnapshotFilename))
	require.True(t, os.IsNotExist(err))
}

func TestRun_GenerateEmptyScopeReportsWarning(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	require.NoError(t, Run(context.Background(), "test", []string{"chkit", "init"}))
	writeSchema(t, filepath.Join(tmpDir, consts.DefaultSchemaDir), usersSchemaYAML)

	// No table matches this selector, so generate should short-circuit
	// instead of diffing and writing an artifact.
	require.NoError(t, Run(context.Background(), "test",
		[]string{"chkit", "--table", "other.nomatch", "generate"}))

	migrations, err := os.ReadDir(filepath.Join(tmpDir, consts.DefaultMigrationsDir))
	require.NoError(t, err)
	require.Empty(t, migrations)
}

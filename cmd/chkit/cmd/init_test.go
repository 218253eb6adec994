package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pseudomuto/chkit/pkg/consts"
)

func TestRun_InitScaffoldsProject(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	require.NoError(t, Run(context.Background(), "test", []string{"chkit", "init"}))

	require.FileExists(t, filepath.Join(tmpDir, consts.ConfigFilename))
	require.DirExists(t, filepath.Join(tmpDir, consts.DefaultSchemaDir))
	require.DirExists(t, filepath.Join(tmpDir, consts.DefaultMigrationsDir))
	require.DirExists(t, filepath.Join(tmpDir, consts.DefaultMetaDir))
}

func TestRun_InitIsIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	require.NoError(t, Run(context.Background(), "test", []string{"chkit", "init"}))

	configPath := filepath.Join(tmpDir, consts.ConfigFilename)
	original, err := os.ReadFile(configPath)
	require.NoError(t, err)

	// A second init must not clobber an edited config.
	edited := append(original, []byte("\n# edited by hand\n")...)
	require.NoError(t, os.WriteFile(configPath, edited, consts.ModeFile))

	require.NoError(t, Run(context.Background(), "test", []string{"chkit", "init"}))

	after, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Equal(t, edited, after)
}

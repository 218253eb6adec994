package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_PluginUnregisteredNameFails(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	require.NoError(t, Run(context.Background(), "test", []string{"chkit", "init"}))

	err := Run(context.Background(), "test", []string{"chkit", "plugin", "acme", "backfill"})
	require.Error(t, err)
	require.Contains(t, err.Error(), `no plugin named "acme" is registered`)
}

func TestRun_PluginMissingNameFails(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	require.NoError(t, Run(context.Background(), "test", []string{"chkit", "init"}))

	err := Run(context.Background(), "test", []string{"chkit", "plugin"})
	require.Error(t, err)
}

package cmd

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pseudomuto/chkit/pkg/chclient/dockertest"
	"github.com/pseudomuto/chkit/pkg/consts"
)

func skipIfNoDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available")
	}
}

// TestRun_MigrateAgainstRealClickHouse drives init, generate, migrate and
// status end to end against a throwaway ClickHouse container, then verifies
// drift and check both see the applied table as up to date.
func TestRun_MigrateAgainstRealClickHouse(t *testing.T) {
	skipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container := dockertest.New("")
	require.NoError(t, container.Start(ctx))
	defer container.Stop(ctx)

	addr, err := container.NativeAddr(ctx)
	require.NoError(t, err)

	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	require.NoError(t, Run(ctx, "test", []string{"chkit", "init"}))

	configPath := filepath.Join(tmpDir, consts.ConfigFilename)
	cfg, err := os.ReadFile(configPath)
	require.NoError(t, err)
	withAddr := append([]byte{}, cfg...)
	withAddr = replaceAddrPlaceholder(withAddr, addr)
	require.NoError(t, os.WriteFile(configPath, withAddr, consts.ModeFile))

	writeSchema(t, filepath.Join(tmpDir, consts.DefaultSchemaDir), usersSchemaYAML)

	require.NoError(t, Run(ctx, "test", []string{"chkit", "generate", "--name", "create_users"}))
	require.NoError(t, Run(ctx, "test", []string{"chkit", "migrate", "--apply", "--allow-destructive"}))
	require.NoError(t, Run(ctx, "test", []string{"chkit", "status"}))
	require.NoError(t, Run(ctx, "test", []string{"chkit", "drift"}))
	require.NoError(t, Run(ctx, "test", []string{"chkit", "check", "--strict"}))
}

func replaceAddrPlaceholder(cfg []byte, addr string) []byte {
	return []byte(strings.Replace(string(cfg), "addr: localhost:9000", "addr: "+addr, 1))
}

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pseudomuto/chkit/pkg/config"
	"github.com/pseudomuto/chkit/pkg/consts"
)

func TestLoadAppliesDirectoryDefaults(t *testing.T) {
	cfg, err := config.Load(strings.NewReader(`
clickhouse:
  addr: localhost:9000
  database: app
`))
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", cfg.ClickHouse.Addr)
	assert.Equal(t, consts.DefaultSchemaDir, cfg.SchemaDir)
	assert.Equal(t, consts.DefaultMigrationsDir, cfg.MigrationsDir)
	assert.Equal(t, consts.DefaultMetaDir, cfg.MetaDir)
	assert.Equal(t, consts.DefaultJournalTable, cfg.JournalTable)
}

func TestLoadPreservesExplicitDirectories(t *testing.T) {
	cfg, err := config.Load(strings.NewReader(`
schemaDir: custom/schema
migrationsDir: custom/migrations
`))
	require.NoError(t, err)
	assert.Equal(t, "custom/schema", cfg.SchemaDir)
	assert.Equal(t, "custom/migrations", cfg.MigrationsDir)
	assert.Equal(t, consts.DefaultMetaDir, cfg.MetaDir)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := config.Load(strings.NewReader("clickhouse: [this is not a mapping"))
	require.Error(t, err)
}

func TestLoadFileOrDefaultReturnsDefaultsWhenMissing(t *testing.T) {
	cfg, err := config.LoadFileOrDefault(filepath.Join(t.TempDir(), "chkit.yaml"))
	require.NoError(t, err)
	assert.Equal(t, consts.DefaultSchemaDir, cfg.SchemaDir)
	assert.Empty(t, cfg.ClickHouse.Addr)
}

func TestLoadFileOrDefaultReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("clickhouse:\n  addr: db:9000\n"), 0o644))

	cfg, err := config.LoadFileOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, "db:9000", cfg.ClickHouse.Addr)
}

func TestLoadFileReturnsErrorWhenMissing(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestTimeoutFallsBackToDefault(t *testing.T) {
	cfg := &config.Config{}
	assert.Equal(t, "10s", cfg.Timeout().String())
}

func TestTimeoutUsesConfiguredSeconds(t *testing.T) {
	cfg := &config.Config{ClickHouse: config.ClickHouse{TimeoutSeconds: 45}}
	assert.Equal(t, "45s", cfg.Timeout().String())
}

func TestResolvedCheckDefaultsAllTrue(t *testing.T) {
	cfg := &config.Config{}
	pending, checksum, drift := cfg.ResolvedCheck(false)
	assert.True(t, pending)
	assert.True(t, checksum)
	assert.True(t, drift)
}

func TestResolvedCheckHonorsExplicitFalse(t *testing.T) {
	disabled := false
	cfg := &config.Config{Check: config.Check{FailOnDrift: &disabled}}
	_, _, drift := cfg.ResolvedCheck(false)
	assert.False(t, drift)
}

func TestResolvedCheckStrictForcesAllTrue(t *testing.T) {
	disabled := false
	cfg := &config.Config{Check: config.Check{
		FailOnPending:          &disabled,
		FailOnChecksumMismatch: &disabled,
		FailOnDrift:            &disabled,
	}}
	pending, checksum, drift := cfg.ResolvedCheck(true)
	assert.True(t, pending)
	assert.True(t, checksum)
	assert.True(t, drift)
}

package chclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaterializedViewTarget(t *testing.T) {
	ref := materializedViewTarget("CREATE MATERIALIZED VIEW app.mv TO app.target (`id` UInt64) AS SELECT 1", "app")
	assert.Equal(t, "app", ref.Database)
	assert.Equal(t, "target", ref.Name)
}

func TestMaterializedViewTargetNoMatch(t *testing.T) {
	ref := materializedViewTarget("CREATE MATERIALIZED VIEW app.mv ENGINE = MergeTree AS SELECT 1", "app")
	assert.Equal(t, "app", ref.Database)
	assert.Equal(t, "", ref.Name)
}

func TestExtractTTL(t *testing.T) {
	assert.Equal(t, "created_at + INTERVAL 30 DAY", extractTTL("CREATE TABLE t (...) ENGINE = MergeTree TTL created_at + INTERVAL 30 DAY SETTINGS index_granularity = 8192"))
	assert.Equal(t, "", extractTTL("CREATE TABLE t (...) ENGINE = MergeTree"))
}

func TestExtractSettings(t *testing.T) {
	settings := extractSettings("MergeTree SETTINGS index_granularity = 8192, min_bytes_for_wide_part = '100'")
	assert.Equal(t, int64(8192), settings["index_granularity"])
	assert.Equal(t, int64(100), settings["min_bytes_for_wide_part"])
}

func TestSplitNonEmpty(t *testing.T) {
	assert.Equal(t, []string{"id", "created_at"}, splitNonEmpty("id, created_at"))
	assert.Nil(t, splitNonEmpty(""))
}

// Package config loads chkit's project configuration file (chkit.yaml):
// ClickHouse connection settings, schema/migration directory layout, and
// the default check policy. Grounded on housekeeper's pkg/config — a
// yaml.v3 streaming decoder followed by filling in defaults the decode
// left zero.
package config

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/pseudomuto/chkit/pkg/consts"
)

type (
	// ClickHouse holds the connection settings a live command (migrate
	// --execute, drift, status with a database-backed journal) needs.
	ClickHouse struct {
		Addr           string `yaml:"addr"`
		Database       string `yaml:"database"`
		Username       string `yaml:"username"`
		Password       string `yaml:"password"`
		TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
	}

	// Check mirrors the policy engine's gate configuration. A nil
	// pointer field means "unset"; ResolvedCheck reports every unset field
	// as its documented default of true.
	Check struct {
		FailOnPending          *bool `yaml:"failOnPending,omitempty"`
		FailOnChecksumMismatch *bool `yaml:"failOnChecksumMismatch,omitempty"`
		FailOnDrift            *bool `yaml:"failOnDrift,omitempty"`
	}

	// Safety holds the destructive-execution gate's config-file override
	//.
	Safety struct {
		AllowDestructive bool `yaml:"allowDestructive,omitempty"`
	}

	// Config is chkit's project configuration (chkit.yaml).
	Config struct {
		ClickHouse    ClickHouse `yaml:"clickhouse"`
		SchemaDir     string     `yaml:"schemaDir,omitempty"`
		MigrationsDir string     `yaml:"migrationsDir,omitempty"`
		MetaDir       string     `yaml:"metaDir,omitempty"`
		JournalTable  string     `yaml:"journalTable,omitempty"`
		Check         Check      `yaml:"check,omitempty"`
		Safety        Safety     `yaml:"safety,omitempty"`
	}
)

// Load parses a project configuration from r and fills in any unset
// directory defaults.
func Load(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding chkit config")
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFile opens path and parses it with Load.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening config file %s", path)
	}
	defer func() { _ = f.Close() }()

	return Load(f)
}

// LoadFileOrDefault loads path if it exists, or returns a default-valued
// Config (with no ClickHouse connection configured) if it doesn't — the
// config file is optional for commands that don't touch a live database.
func LoadFileOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &Config{}
		cfg.applyDefaults()
		return cfg, nil
	}
	return LoadFile(path)
}

func (c *Config) applyDefaults() {
	if c.SchemaDir == "" {
		c.SchemaDir = consts.DefaultSchemaDir
	}
	if c.MigrationsDir == "" {
		c.MigrationsDir = consts.DefaultMigrationsDir
	}
	if c.MetaDir == "" {
		c.MetaDir = consts.DefaultMetaDir
	}
	if c.JournalTable == "" {
		c.JournalTable = consts.DefaultJournalTable
	}
}

// Timeout returns the configured ClickHouse statement timeout, or
// consts.DefaultDDLTimeout seconds if unset.
func (c *Config) Timeout() time.Duration {
	if c.ClickHouse.TimeoutSeconds <= 0 {
		return consts.DefaultDDLTimeout * time.Second
	}
	return time.Duration(c.ClickHouse.TimeoutSeconds) * time.Second
}

// ResolvedCheck resolves c.Check against documented defaults (every
// gate true unless explicitly disabled), then applies strict if true,
// forcing every gate on irrespective of config.
func (c *Config) ResolvedCheck(strict bool) (failOnPending, failOnChecksumMismatch, failOnDrift bool) {
	failOnPending = boolOrDefault(c.Check.FailOnPending, true)
	failOnChecksumMismatch = boolOrDefault(c.Check.FailOnChecksumMismatch, true)
	failOnDrift = boolOrDefault(c.Check.FailOnDrift, true)

	if strict {
		return true, true, true
	}
	return failOnPending, failOnChecksumMismatch, failOnDrift
}

func boolOrDefault(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/pseudomuto/chkit/pkg/consts"
)

const initialConfigTemplate = `# chkit project configuration
clickhouse:
  addr: localhost:9000
  database: default
  username: default
  password: ""

schemaDir: ` + consts.DefaultSchemaDir + `
migrationsDir: ` + consts.DefaultMigrationsDir + `
metaDir: ` + consts.DefaultMetaDir + `

check:
  failOnPending: true
  failOnChecksumMismatch: true
  failOnDrift: true

safety:
  allowDestructive: false
`

// initCmd scaffolds a new chkit project in the current directory: the
// project config file plus the schema/migrations/meta directory layout.
// Idempotent — an existing chkit.yaml or directory is left untouched.
func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a new chkit project in the current directory",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			configPath := cmd.Root().String("config")
			if configPath == "" {
				configPath = consts.ConfigFilename
			}

			created, err := writeIfAbsent(configPath, []byte(initialConfigTemplate))
			if err != nil {
				return err
			}

			for _, dir := range []string{consts.DefaultSchemaDir, consts.DefaultMigrationsDir, consts.DefaultMetaDir} {
				if err := os.MkdirAll(dir, consts.ModeDir); err != nil {
					return errors.Wrapf(err, "creating %s", dir)
				}
			}

			if current != nil && current.JSONMode {
				return printJSON(map[string]any{
					"initialized": true,
					"configPath":  configPath,
					"configWritten": created,
				})
			}

			printf("Initialized chkit project in %s\n", mustAbs(configPath))
			if created {
				printf("  created %s\n", configPath)
			} else {
				printf("  %s already exists, left unchanged\n", configPath)
			}
			printf("  created %s/, %s/, %s/\n", consts.DefaultSchemaDir, consts.DefaultMigrationsDir, consts.DefaultMetaDir)
			return nil
		},
	}
}

func writeIfAbsent(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, errors.Wrapf(err, "checking %s", path)
	}

	if err := os.WriteFile(path, data, consts.ModeFile); err != nil {
		return false, errors.Wrapf(err, "writing %s", path)
	}
	return true, nil
}

func mustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// Package consts holds small shared constants used across chkit's packages.
package consts

import "os"

const (
	// ModeDir is the standard file mode used when creating directories.
	ModeDir = os.FileMode(0o755)

	// ModeFile is the standard file mode used when creating files.
	ModeFile = os.FileMode(0o644)

	// DefaultMigrationsDir is the default directory migrations are read from and written to.
	DefaultMigrationsDir = "db/migrations"

	// DefaultMetaDir is the default directory for the snapshot and journal files.
	DefaultMetaDir = "db/meta"

	// SnapshotFilename is the name of the snapshot file within the meta directory.
	SnapshotFilename = "snapshot.json"

	// JournalFilename is the name of the journal file within the meta directory.
	JournalFilename = "journal.json"

	// DefaultDDLTimeout bounds every individual DDL call made against ClickHouse.
	DefaultDDLTimeout = 10 // seconds

	// JournalTableEnvVar overrides the logical name used for a database-backed journal.
	JournalTableEnvVar = "CHKIT_JOURNAL_TABLE"

	// DefaultJournalTable is the table name used for a database-backed journal
	// when JournalTableEnvVar is set to an empty value.
	DefaultJournalTable = "chkit.journal"

	// DefaultSchemaDir is the default directory a project's schema
	// definition YAML files live in, relative to the project root.
	DefaultSchemaDir = "db/schema"

	// ConfigFilename is the name of chkit's project configuration file.
	ConfigFilename = "chkit.yaml"

	// DefaultCLIVersion is used when a command is invoked with no version
	// string wired in by the main package (e.g. in tests).
	DefaultCLIVersion = "dev"
)

// Package store implements the filesystem responsibilities of: listing
// migration files, reading/writing the snapshot and journal, checksumming
// migration content, and materializing a plan into a migration artifact.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/pseudomuto/chkit/pkg/chkerr"
	"github.com/pseudomuto/chkit/pkg/consts"
	"github.com/pseudomuto/chkit/pkg/planner"
	"github.com/pseudomuto/chkit/pkg/schema"
)

// JournalEntry records one applied migration.
type JournalEntry struct {
	Name      string    `json:"name"`
	AppliedAt time.Time `json:"appliedAt"`
	Checksum  string    `json:"checksum"`
}

// Journal is the persisted record of applied migrations.
type Journal struct {
	Version int            `json:"version"`
	Applied []JournalEntry `json:"applied"`
}

// AppliedNames returns the migration filenames recorded in the journal.
func (j Journal) AppliedNames() map[string]bool {
	names := make(map[string]bool, len(j.Applied))
	for _, e := range j.Applied {
		names[e.Name] = true
	}
	return names
}

// ListMigrations returns every *.sql filename directly under dir, sorted
// lexicographically (which is also application order, since filenames start
// with a 14-digit timestamp id).
func ListMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &chkerr.IOFailure{Op: "list migrations", Err: err}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadSnapshot returns the prior snapshot in metaDir, or nil if none exists
// yet.
func ReadSnapshot(metaDir string) (*schema.Snapshot, error) {
	path := filepath.Join(metaDir, consts.SnapshotFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &chkerr.IOFailure{Op: "read snapshot", Err: err}
	}

	var snap schema.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &chkerr.IOFailure{Op: "parse snapshot", Err: err}
	}
	return &snap, nil
}

// WriteSnapshot atomically replaces metaDir/snapshot.json with snap,
// pretty-printed.
func WriteSnapshot(metaDir string, snap schema.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return &chkerr.IOFailure{Op: "marshal snapshot", Err: err}
	}
	return atomicWriteFile(filepath.Join(metaDir, consts.SnapshotFilename), data)
}

// ReadJournal returns metaDir's journal, or an empty version-1 journal if
// the file doesn't exist yet. Malformed JSON is a fatal IOFailure.
func ReadJournal(metaDir string) (Journal, error) {
	path := filepath.Join(metaDir, consts.JournalFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Journal{Version: 1}, nil
		}
		return Journal{}, &chkerr.IOFailure{Op: "read journal", Err: err}
	}

	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return Journal{}, &chkerr.IOFailure{Op: "invalid journal JSON", Err: err}
	}
	return j, nil
}

// WriteJournal atomically replaces metaDir/journal.json with j.
func WriteJournal(metaDir string, j Journal) error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return &chkerr.IOFailure{Op: "marshal journal", Err: err}
	}
	return atomicWriteFile(filepath.Join(metaDir, consts.JournalFilename), data)
}

// ChecksumSQL returns the hex-encoded SHA-256 digest of text after
// normalizing it to LF line endings with a single trailing newline.
func ChecksumSQL(text string) string {
	normalized := normalizeSQLBytes(text)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func normalizeSQLBytes(text string) string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.TrimRight(normalized, "\n") + "\n"
	return normalized
}

// ChecksumMismatch is one journaled migration whose current file content no
// longer matches its recorded checksum.
type ChecksumMismatch struct {
	Name          string
	JournaledSum  string
	RecomputedSum string
}

// FindChecksumMismatches recomputes checksums for every journaled entry
// whose migration file still exists under migrationsDir and reports any
// whose recomputed checksum disagrees with the journal.
func FindChecksumMismatches(migrationsDir string, j Journal) ([]ChecksumMismatch, error) {
	var mismatches []ChecksumMismatch
	for _, entry := range j.Applied {
		path := filepath.Join(migrationsDir, entry.Name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &chkerr.IOFailure{Op: "read migration " + entry.Name, Err: err}
		}
		sum := ChecksumSQL(string(data))
		if sum != entry.Checksum {
			mismatches = append(mismatches, ChecksumMismatch{
				Name: entry.Name, JournaledSum: entry.Checksum, RecomputedSum: sum,
			})
		}
	}
	return mismatches, nil
}

// GenerateArtifactsInput carries everything GenerateArtifacts needs.
type GenerateArtifactsInput struct {
	Definitions   []schema.Definition
	MigrationsDir string
	MetaDir       string
	MigrationName string
	MigrationID   string
	Plan          *planner.MigrationPlan
	CLIVersion    string
	GeneratedAt   time.Time
}

// GenerateArtifactsResult reports what GenerateArtifacts wrote.
type GenerateArtifactsResult struct {
	MigrationFile string // empty when the plan had no operations
}

// GenerateArtifacts materializes in.Plan into a migration file (unless the
// plan is empty, in which case only the snapshot is written) and atomically
// rewrites the snapshot.
func GenerateArtifacts(in GenerateArtifactsInput) (*GenerateArtifactsResult, error) {
	if err := os.MkdirAll(in.MigrationsDir, consts.ModeDir); err != nil {
		return nil, &chkerr.IOFailure{Op: "create migrations dir", Err: err}
	}
	if err := os.MkdirAll(in.MetaDir, consts.ModeDir); err != nil {
		return nil, &chkerr.IOFailure{Op: "create meta dir", Err: err}
	}

	result := &GenerateArtifactsResult{}

	if in.Plan != nil && len(in.Plan.Operations) > 0 {
		id := in.MigrationID
		if id == "" {
			id = in.GeneratedAt.UTC().Format("20060102150405")
		}
		name := in.MigrationName
		if name == "" {
			name = "auto"
		}
		filename := id + "_" + name + ".sql"

		content := renderMigrationFile(in.CLIVersion, in.Plan)
		if err := atomicWriteFile(filepath.Join(in.MigrationsDir, filename), []byte(content)); err != nil {
			return nil, err
		}
		result.MigrationFile = filename
	}

	snap := schema.Snapshot{
		Version:     1,
		GeneratedAt: in.GeneratedAt,
		Definitions: schema.Canonicalize(in.Definitions),
	}
	if err := WriteSnapshot(in.MetaDir, snap); err != nil {
		return nil, err
	}

	return result, nil
}

func renderMigrationFile(cliVersion string, plan *planner.MigrationPlan) string {
	var b strings.Builder
	b.WriteString("-- chkit migration ")
	b.WriteString(cliVersion)
	b.WriteString("\n")
	for _, op := range plan.Operations {
		b.WriteString("-- operation: ")
		b.WriteString(op.Type)
		b.WriteString(" key=")
		b.WriteString(op.Key)
		b.WriteString(" risk=")
		b.WriteString(op.Risk)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for i, op := range plan.Operations {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(op.SQL)
		b.WriteString("\n")
	}
	return b.String()
}

// atomicWriteFile writes data to path via a temp file in the same directory
// followed by a rename, so a crash mid-write never leaves a half-written
// file in path's place. This is the one place the core
// departs from housekeeper's plain os.WriteFile — atomic replace has no
// equivalent among the corpus's dependencies, so it's hand-rolled here.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, consts.ModeDir); err != nil {
		return &chkerr.IOFailure{Op: "create directory for " + path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return &chkerr.IOFailure{Op: "create temp file for " + path, Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &chkerr.IOFailure{Op: "write " + path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &chkerr.IOFailure{Op: "close " + path, Err: err}
	}
	if err := os.Chmod(tmpPath, consts.ModeFile); err != nil {
		return &chkerr.IOFailure{Op: "chmod " + path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &chkerr.IOFailure{Op: "rename into place " + path, Err: errors.WithStack(err)}
	}
	return nil
}

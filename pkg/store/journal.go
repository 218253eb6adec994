package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/pseudomuto/chkit/pkg/chclient"
	"github.com/pseudomuto/chkit/pkg/chkerr"
	"github.com/pseudomuto/chkit/pkg/consts"
)

// JournalStore is the backing-store abstraction behind ReadJournal/
// WriteJournal: chkit must support both a local JSON file and a database
// table behind the identical interface. CHKIT_JOURNAL_TABLE, together with
// an available ClickHouse connection, selects which implementation a command
// wires up; callers never branch on backing store themselves.
type JournalStore interface {
	Read(ctx context.Context) (Journal, error)
	Write(ctx context.Context, j Journal) error
}

// FileJournalStore backs JournalStore with metaDir/journal.json.
type FileJournalStore struct {
	MetaDir string
}

func (s FileJournalStore) Read(context.Context) (Journal, error) {
	return ReadJournal(s.MetaDir)
}

func (s FileJournalStore) Write(_ context.Context, j Journal) error {
	return WriteJournal(s.MetaDir, j)
}

// DBJournalStore backs JournalStore with a ClickHouse table, keyed by the
// table name chosen via CHKIT_JOURNAL_TABLE (falling back to
// consts.DefaultJournalTable). Used when a project wants the journal to
// live alongside the data it migrates instead of in a JSON file sitting
// next to the migrations directory.
type DBJournalStore struct {
	Conn  *chclient.Client
	Table string
}

// NewDBJournalStore uses consts.DefaultJournalTable when table is empty; it
// does not read the environment itself.
func NewDBJournalStore(conn *chclient.Client, table string) DBJournalStore {
	if table == "" {
		table = consts.DefaultJournalTable
	}
	return DBJournalStore{Conn: conn, Table: table}
}

func (s DBJournalStore) ensureTable(ctx context.Context) error {
	ddl := "CREATE TABLE IF NOT EXISTS " + s.Table + " " +
		"(name String, applied_at DateTime64(3), checksum String) " +
		"ENGINE = MergeTree ORDER BY name"
	if err := s.Conn.Exec(ctx, ddl); err != nil {
		return &chkerr.IOFailure{Op: "ensure journal table " + s.Table, Err: err}
	}
	return nil
}

func (s DBJournalStore) Read(ctx context.Context) (Journal, error) {
	if err := s.ensureTable(ctx); err != nil {
		return Journal{}, err
	}

	rows, err := s.Conn.Query(ctx, "SELECT name, applied_at, checksum FROM "+s.Table+" ORDER BY name")
	if err != nil {
		return Journal{}, &chkerr.IOFailure{Op: "read journal table " + s.Table, Err: err}
	}
	defer rows.Close()

	j := Journal{Version: 1}
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.Name, &e.AppliedAt, &e.Checksum); err != nil {
			return Journal{}, &chkerr.IOFailure{Op: "scan journal row", Err: err}
		}
		j.Applied = append(j.Applied, e)
	}
	return j, nil
}

// Write replaces the journal table's contents with j.Applied. ClickHouse has
// no transactional multi-row replace, so this truncates then re-inserts
// under a best-effort ordering: callers only ever append one entry per
// Write in practice (the runner calls Write after each migration), so the
// truncate-then-reinsert cost stays proportional to the journal size, not
// the work done.
func (s DBJournalStore) Write(ctx context.Context, j Journal) error {
	if err := s.ensureTable(ctx); err != nil {
		return err
	}
	if err := s.Conn.Exec(ctx, "TRUNCATE TABLE "+s.Table); err != nil {
		return &chkerr.IOFailure{Op: "truncate journal table " + s.Table, Err: err}
	}

	for _, e := range j.Applied {
		if err := s.Conn.Exec(ctx,
			"INSERT INTO "+s.Table+" (name, applied_at, checksum) VALUES (?, ?, ?)",
			e.Name, e.AppliedAt.UTC().Format(time.RFC3339Nano), e.Checksum,
		); err != nil {
			return &chkerr.IOFailure{Op: "insert journal row " + e.Name, Err: errors.WithStack(err)}
		}
	}
	return nil
}

// Package runner implements the migration runner: it orders pending
// migrations, enforces the checksum and destructive-execution gates, and
// applies pending files through the journal, invoking the plugin bridge at
// the documented phase boundaries.
package runner

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/pseudomuto/chkit/pkg/chkerr"
	"github.com/pseudomuto/chkit/pkg/markers"
	"github.com/pseudomuto/chkit/pkg/plugin"
	"github.com/pseudomuto/chkit/pkg/scope"
	"github.com/pseudomuto/chkit/pkg/store"
)

// Executor is the narrow interface the runner needs against a live
// ClickHouse connection, satisfied by *chclient.Client.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// Runner wires together a migration directory, a journal backing store,
// and (for execute mode) a live ClickHouse connection and plugin bridge.
type Runner struct {
	MigrationsDir string
	Journal       store.JournalStore
	Conn          Executor
	Bridge        *plugin.Bridge
}

// New returns a Runner. conn and bridge may be nil for plan-mode-only use
// (listing pending migrations never needs a live connection or plugins).
func New(migrationsDir string, journal store.JournalStore, conn Executor, bridge *plugin.Bridge) *Runner {
	return &Runner{MigrationsDir: migrationsDir, Journal: journal, Conn: conn, Bridge: bridge}
}

// PendingResult is the outcome of computing and scope-filtering the
// pending migration set.
type PendingResult struct {
	Pending  []string
	Warnings []string
}

// Pending computes the scope-filtered pending migration list: every
// *.sql file not yet in the journal, intersected with sc.
// It aborts with *chkerr.ChecksumMismatch if any journaled migration's file
// content no longer matches its recorded checksum.
func (r *Runner) Pending(ctx context.Context, sc scope.Scope) (*PendingResult, error) {
	names, mismatches, err := r.pendingNames(ctx)
	if err != nil {
		return nil, err
	}
	if len(mismatches) > 0 {
		return nil, &chkerr.ChecksumMismatch{Names: mismatches}
	}

	return r.filterByScope(names, sc)
}

// pendingNames reads the journal and migrations directory and returns the
// names not yet applied, plus any checksum mismatches found among
// journaled entries.
func (r *Runner) pendingNames(ctx context.Context) (pending []string, mismatchNames []string, err error) {
	journal, err := r.Journal.Read(ctx)
	if err != nil {
		return nil, nil, err
	}

	all, err := store.ListMigrations(r.MigrationsDir)
	if err != nil {
		return nil, nil, err
	}

	mismatches, err := store.FindChecksumMismatches(r.MigrationsDir, journal)
	if err != nil {
		return nil, nil, err
	}
	for _, m := range mismatches {
		mismatchNames = append(mismatchNames, m.Name)
	}

	applied := journal.AppliedNames()
	for _, name := range all {
		if !applied[name] {
			pending = append(pending, name)
		}
	}
	return pending, mismatchNames, nil
}

// filterByScope applies step 3's table-scope filter: a migration
// matches if any of its operation markers names a table or database in sc,
// and an unannotated file (zero markers) is always included, with a
// warning, as a safety fallback.
func (r *Runner) filterByScope(names []string, sc scope.Scope) (*PendingResult, error) {
	if !sc.Enabled() {
		return &PendingResult{Pending: names}, nil
	}

	dbScope := sc.Databases()
	result := &PendingResult{}

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(r.MigrationsDir, name))
		if err != nil {
			return nil, &chkerr.IOFailure{Op: "read migration " + name, Err: err}
		}

		ms := markers.Parse(string(data))
		if len(ms) == 0 {
			result.Pending = append(result.Pending, name)
			result.Warnings = append(result.Warnings,
				"migration "+name+" has no operation markers; included as a safety fallback for --table "+sc.String())
			continue
		}

		if markersMatchScope(ms, sc, dbScope) {
			result.Pending = append(result.Pending, name)
		}
	}
	return result, nil
}

func markersMatchScope(ms []markers.Marker, sc scope.Scope, dbScope map[string]bool) bool {
	for _, m := range ms {
		if tbl, ok := markers.TableFromKey(m.Key); ok {
			db, name, found := strings.Cut(tbl, ".")
			if found && sc.MatchTable(db, name) {
				return true
			}
			continue
		}
		if db, ok := markers.DatabaseFromKey(m.Key); ok {
			if dbScope[db] {
				return true
			}
		}
	}
	return false
}

// ExecuteOptions configures Execute's destructive gate.
type ExecuteOptions struct {
	// AllowDestructive corresponds to --allow-destructive or
	// safety.allowDestructive.
	AllowDestructive bool
	// Confirm, if non-nil, is called once with the pending destructive
	// operations when the gate would otherwise block, for interactive TTY
	// confirmation. A false return (or error) keeps the gate blocked.
	Confirm func(ops []chkerr.DestructiveOperation) (bool, error)
}

// ExecuteResult reports what Execute actually applied.
type ExecuteResult struct {
	Applied  []string
	Warnings []string
}

// Execute applies the scope-filtered pending migration set in lexicographic
// order. It never partially
// journals a file: a statement failure mid-file leaves that file
// unjournaled, while every prior file in the same run stays journaled.
func (r *Runner) Execute(ctx context.Context, hc plugin.Context, sc scope.Scope, opts ExecuteOptions) (*ExecuteResult, error) {
	if r.Conn == nil {
		return nil, chkerr.ErrMissingClickHouseConfig
	}

	pendingResult, err := r.Pending(ctx, sc)
	if err != nil {
		return nil, err
	}

	destructive, err := r.collectDestructiveOperations(pendingResult.Pending)
	if err != nil {
		return nil, err
	}
	if len(destructive) > 0 && !opts.AllowDestructive {
		allowed := false
		if opts.Confirm != nil {
			allowed, err = opts.Confirm(destructive)
			if err != nil {
				return nil, err
			}
		}
		if !allowed {
			return nil, &chkerr.DestructiveBlocked{
				Migrations: destructiveMigrationNames(destructive),
				Operations: destructive,
			}
		}
	}

	journal, err := r.Journal.Read(ctx)
	if err != nil {
		return nil, err
	}

	result := &ExecuteResult{Warnings: pendingResult.Warnings}

	for _, name := range pendingResult.Pending {
		if ctx.Err() != nil {
			// Cancellation between files: exit cleanly, journal already
			// reflects every fully-applied file.
			return result, nil
		}

		if err := r.applyOne(ctx, hc, name, &journal); err != nil {
			return result, err
		}
		result.Applied = append(result.Applied, name)
	}

	return result, nil
}

func (r *Runner) applyOne(ctx context.Context, hc plugin.Context, name string, journal *store.Journal) error {
	path := filepath.Join(r.MigrationsDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return &chkerr.IOFailure{Op: "read migration " + name, Err: err}
	}
	sql := string(data)

	statements := ExtractStatements(sql)
	if r.Bridge != nil {
		statements, err = r.Bridge.BeforeApply(ctx, hc, name, sql, statements)
		if err != nil {
			return errors.Wrapf(err, "plugin onBeforeApply for %s", name)
		}
	}

	for _, stmt := range statements {
		if err := r.Conn.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "executing %s", name)
		}
	}

	appliedAt := time.Now().UTC()
	journal.Applied = append(journal.Applied, store.JournalEntry{
		Name:      name,
		AppliedAt: appliedAt,
		Checksum:  store.ChecksumSQL(sql),
	})
	if err := r.Journal.Write(ctx, *journal); err != nil {
		return err
	}

	if r.Bridge != nil {
		if err := r.Bridge.AfterApply(ctx, hc, name, statements, appliedAt); err != nil {
			return errors.Wrapf(err, "plugin onAfterApply for %s", name)
		}
	}
	return nil
}

// collectDestructiveOperations parses every candidate migration's markers
// and reports every risk=danger operation found, in file order.
func (r *Runner) collectDestructiveOperations(names []string) ([]chkerr.DestructiveOperation, error) {
	var ops []chkerr.DestructiveOperation
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(r.MigrationsDir, name))
		if err != nil {
			return nil, &chkerr.IOFailure{Op: "read migration " + name, Err: err}
		}
		for _, m := range markers.Parse(string(data)) {
			if m.Risk != "danger" {
				continue
			}
			ops = append(ops, chkerr.DestructiveOperation{
				Migration:   name,
				Key:         m.Key,
				WarningCode: chkerr.WarningCodeForDrop(m.Type),
			})
		}
	}
	return ops, nil
}

func destructiveMigrationNames(ops []chkerr.DestructiveOperation) []string {
	seen := make(map[string]bool, len(ops))
	var names []string
	for _, op := range ops {
		if seen[op.Migration] {
			continue
		}
		seen[op.Migration] = true
		names = append(names, op.Migration)
	}
	return names
}

// ExtractStatements splits a migration file's SQL into individual
// statements: comment lines starting with
// "--" are removed, the remainder is split on ';' boundaries outside of
// single-quote and backtick quoting, and each resulting statement is
// trimmed with empties dropped.
func ExtractStatements(sql string) []string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sql))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var statements []string
	var cur strings.Builder
	var inSingle, inBacktick bool
	body := b.String()
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\'' && !inBacktick:
			inSingle = !inSingle
			cur.WriteByte(c)
		case c == '`' && !inSingle:
			inBacktick = !inBacktick
			cur.WriteByte(c)
		case c == ';' && !inSingle && !inBacktick:
			statements = append(statements, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		statements = append(statements, rest)
	}

	out := statements[:0:0]
	for _, s := range statements {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

package planner

import (
	"fmt"

	"github.com/pseudomuto/chkit/pkg/chkerr"
	"github.com/pseudomuto/chkit/pkg/render"
	"github.com/pseudomuto/chkit/pkg/schema"
)

type (
	// TableRenameMapping is one --rename-table mapping, or the equivalent
	// derived from a table's schema-embedded renamedFrom.
	TableRenameMapping struct {
		OldDatabase, OldName string
		NewDatabase, NewName string
	}

	// ColumnRenameMapping is one --rename-column mapping, or the equivalent
	// derived from a column's schema-embedded renamedFrom.
	ColumnRenameMapping struct {
		Database, Table string
		From, To        string
	}

	// Options carries the explicit rename mappings an orchestrator applies
	// on top of the raw diff.
	Options struct {
		TableRenames  []TableRenameMapping
		ColumnRenames []ColumnRenameMapping
	}
)

func (m TableRenameMapping) sourceKey() string { return m.OldDatabase + "." + m.OldName }
func (m TableRenameMapping) targetKey() string { return m.NewDatabase + "." + m.NewName }

func (m ColumnRenameMapping) sourceKey() string { return m.Database + "." + m.Table + "." + m.From }
func (m ColumnRenameMapping) targetKey() string { return m.Database + "." + m.Table + "." + m.To }

// Plan is the full planning entrypoint: it merges explicit CLI renames with
// schema-embedded renamedFrom metadata, pre-rewrites oldDefs so renamed
// tables/columns line up with their new identity before diffing, runs Diff,
// then folds the rename pairs in the raw plan into explicit rename
// operations and infers heuristic column-rename suggestions for whatever
// remains.
func Plan(oldDefs, newDefs []schema.Definition, opts Options) (*MigrationPlan, error) {
	tableRenames, err := mergeTableRenames(opts.TableRenames, newDefs)
	if err != nil {
		return nil, err
	}
	if err := checkInjective(tableRenames); err != nil {
		return nil, err
	}

	oldByID := byIdentity(oldDefs)
	newByID := byIdentity(newDefs)
	for _, m := range tableRenames {
		srcID := schema.Identity{Kind: schema.KindTable, Database: m.OldDatabase, Name: m.OldName}
		dstID := schema.Identity{Kind: schema.KindTable, Database: m.NewDatabase, Name: m.NewName}
		if _, ok := oldByID[srcID]; !ok {
			return nil, &chkerr.UnresolvableRename{
				Mapping: fmt.Sprintf("%s=%s", m.sourceKey(), m.targetKey()),
				Reason:  "source table not found in old schema",
			}
		}
		if _, ok := newByID[dstID]; !ok {
			return nil, &chkerr.UnresolvableRename{
				Mapping: fmt.Sprintf("%s=%s", m.sourceKey(), m.targetKey()),
				Reason:  "target table not found in new schema",
			}
		}
	}

	rewrittenOld := rewriteOldTableIdentities(oldDefs, tableRenames)

	plan := Diff(rewrittenOld, newDefs)

	for _, m := range tableRenames {
		applyTableRename(plan, m, newByID)
	}

	columnRenames, err := mergeColumnRenames(opts.ColumnRenames, newDefs, tableRenames)
	if err != nil {
		return nil, err
	}
	if err := checkColumnInjective(columnRenames); err != nil {
		return nil, err
	}

	consumed := make(map[string]bool, len(columnRenames)*2)
	for _, m := range columnRenames {
		if err := applyColumnRename(plan, m); err != nil {
			return nil, err
		}
		consumed[columnKey(m.Database, m.Table, m.From)] = true
		consumed[columnKey(m.Database, m.Table, m.To)] = true
	}

	sortOperations(plan.Operations)
	plan.RiskSummary = summarize(plan.Operations)
	plan.RenameSuggestions = inferColumnRenames(rewrittenOld, newDefs, consumed)

	return plan, nil
}

// mergeTableRenames combines explicit CLI mappings with renamedFrom metadata
// embedded in newDefs' tables. On a source-key conflict between the two,
// the CLI mapping wins and the schema-declared one is discarded silently.
func mergeTableRenames(cli []TableRenameMapping, newDefs []schema.Definition) ([]TableRenameMapping, error) {
	bySource := make(map[string]TableRenameMapping)
	for _, d := range newDefs {
		if d.Kind != schema.KindTable || d.Table == nil || d.Table.RenamedFrom == nil {
			continue
		}
		from := *d.Table.RenamedFrom
		oldDB := from.Database
		if oldDB == "" {
			oldDB = d.Database
		}
		m := TableRenameMapping{OldDatabase: oldDB, OldName: from.Name, NewDatabase: d.Database, NewName: d.Name}
		bySource[m.sourceKey()] = m
	}
	for _, m := range cli {
		bySource[m.sourceKey()] = m // CLI wins on conflict
	}

	out := make([]TableRenameMapping, 0, len(bySource))
	for _, m := range bySource {
		out = append(out, m)
	}
	return out, nil
}

// mergeColumnRenames combines explicit CLI mappings with renamedFrom
// metadata embedded in newDefs' columns, keyed by the new database.table
// and source column; an explicit CLI mapping replaces a renamedFrom mapping
// with the same key. tableRenames is not consulted.
func mergeColumnRenames(cli []ColumnRenameMapping, newDefs []schema.Definition, tableRenames []TableRenameMapping) ([]ColumnRenameMapping, error) {
	bySource := make(map[string]ColumnRenameMapping)
	for _, d := range newDefs {
		if d.Kind != schema.KindTable || d.Table == nil {
			continue
		}
		for _, c := range d.Table.Columns {
			if c.RenamedFrom == nil {
				continue
			}
			m := ColumnRenameMapping{Database: d.Database, Table: d.Name, From: *c.RenamedFrom, To: c.Name}
			bySource[m.sourceKey()] = m
		}
	}
	for _, m := range cli {
		bySource[m.sourceKey()] = m
	}

	out := make([]ColumnRenameMapping, 0, len(bySource))
	for _, m := range bySource {
		out = append(out, m)
	}
	return out, nil
}

// checkInjective rejects table-rename sets where two mappings share a
// source or two share a target — chained or conflicting intent that the
// planner refuses to resolve iteratively.
func checkInjective(mappings []TableRenameMapping) error {
	sources := make(map[string]bool, len(mappings))
	targets := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if sources[m.sourceKey()] {
			return &chkerr.UnresolvableRename{Mapping: m.sourceKey(), Reason: "source appears in more than one table rename mapping"}
		}
		sources[m.sourceKey()] = true
		if targets[m.targetKey()] {
			return &chkerr.UnresolvableRename{Mapping: m.targetKey(), Reason: "target appears in more than one table rename mapping"}
		}
		targets[m.targetKey()] = true
	}
	// Reject chained/cyclic mappings: a mapping's target is also another
	// mapping's source.
	for _, m := range mappings {
		if sources[m.targetKey()] {
			return &chkerr.UnresolvableRename{
				Mapping: fmt.Sprintf("%s=%s", m.sourceKey(), m.targetKey()),
				Reason:  "chained or cyclic rename mapping",
			}
		}
	}
	return nil
}

func checkColumnInjective(mappings []ColumnRenameMapping) error {
	sources := make(map[string]bool, len(mappings))
	targets := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if sources[m.sourceKey()] {
			return &chkerr.UnresolvableRename{Mapping: m.sourceKey(), Reason: "source appears in more than one column rename mapping"}
		}
		sources[m.sourceKey()] = true
		if targets[m.targetKey()] {
			return &chkerr.UnresolvableRename{Mapping: m.targetKey(), Reason: "target appears in more than one column rename mapping"}
		}
		targets[m.targetKey()] = true
	}
	for _, m := range mappings {
		if sources[m.targetKey()] {
			return &chkerr.UnresolvableRename{
				Mapping: fmt.Sprintf("%s=%s", m.sourceKey(), m.targetKey()),
				Reason:  "chained or cyclic rename mapping",
			}
		}
	}
	return nil
}

// rewriteOldTableIdentities returns a copy of oldDefs with every table named
// as the source of a rename mapping relabeled to its mapping's target
// identity, so Diff sees it as the same entity as the corresponding new
// definition instead of an unrelated drop/create pair.
func rewriteOldTableIdentities(oldDefs []schema.Definition, mappings []TableRenameMapping) []schema.Definition {
	bySource := make(map[schema.Identity]TableRenameMapping, len(mappings))
	for _, m := range mappings {
		bySource[schema.Identity{Kind: schema.KindTable, Database: m.OldDatabase, Name: m.OldName}] = m
	}

	out := make([]schema.Definition, len(oldDefs))
	for i, d := range oldDefs {
		if m, ok := bySource[d.Identity()]; ok && d.Kind == schema.KindTable {
			d.Database = m.NewDatabase
			d.Name = m.NewName
		}
		out[i] = d
	}
	return out
}

// applyTableRename inserts the explicit alter_table_rename_table operation
// for m and a create_database for its target database if one isn't already
// scheduled.
func applyTableRename(plan *MigrationPlan, m TableRenameMapping, newByID map[schema.Identity]schema.Definition) {
	plan.Operations = append(plan.Operations, Operation{
		Type: OpAlterTableRenameTable,
		Key:  renameTableKey(m.OldDatabase, m.OldName),
		Risk: RiskCaution,
		SQL:  render.RenameTable(m.OldDatabase, m.OldName, m.NewDatabase, m.NewName),
	})

	if m.NewDatabase == m.OldDatabase {
		return
	}
	dbKey := databaseKey(m.NewDatabase)
	for _, op := range plan.Operations {
		if op.Key == dbKey {
			return
		}
	}
	plan.Operations = append(plan.Operations, Operation{
		Type: OpCreateDatabase,
		Key:  dbKey,
		Risk: RiskSafe,
		SQL:  render.CreateDatabase(m.NewDatabase),
	})
}

// applyColumnRename requires the plan to already contain both the drop and
// add operation for m's column pair,
// replacing them with one alter_table_rename_column operation.
func applyColumnRename(plan *MigrationPlan, m ColumnRenameMapping) error {
	dropKey := columnKey(m.Database, m.Table, m.From)
	addKey := columnKey(m.Database, m.Table, m.To)

	var foundDrop, foundAdd bool
	filtered := plan.Operations[:0:0]
	for _, op := range plan.Operations {
		switch op.Key {
		case dropKey:
			if op.Type == OpAlterTableDropColumn {
				foundDrop = true
				continue
			}
		case addKey:
			if op.Type == OpAlterTableAddColumn {
				foundAdd = true
				continue
			}
		}
		filtered = append(filtered, op)
	}

	if !foundDrop || !foundAdd {
		return &chkerr.UnresolvableRename{
			Mapping: fmt.Sprintf("%s.%s.%s=%s", m.Database, m.Table, m.From, m.To),
			Reason:  "planned drop and add operations for both columns must both be present",
		}
	}

	filtered = append(filtered, Operation{
		Type: OpAlterTableRenameColumn,
		Key:  columnRenameKey(m.Database, m.Table, m.From, m.To),
		Risk: RiskCaution,
		SQL:  render.RenameColumn(m.Database, m.Table, m.From, m.To),
	})
	plan.Operations = filtered
	return nil
}

// columnSignature is the non-name shape two columns must share for the
// heuristic rename inference to consider them the same column under a new
// name.
type columnSignature struct {
	typ      string
	nullable bool
	hasNull  bool
	def      any
	comment  string
}

func signatureOf(c schema.Column) columnSignature {
	sig := columnSignature{typ: c.Type, def: c.Default}
	if c.Nullable != nil {
		sig.hasNull = true
		sig.nullable = *c.Nullable
	}
	if c.Comment != nil {
		sig.comment = *c.Comment
	}
	return sig
}

// inferColumnRenames pairs dropped and added columns (excluding any already
// resolved by an explicit rename) sharing a byte-identical signature, one
// RenameSuggestion per signature class with exactly one dropped and one
// added candidate.
func inferColumnRenames(oldDefs, newDefs []schema.Definition, consumed map[string]bool) []RenameSuggestion {
	oldByID := byIdentity(oldDefs)

	var suggestions []RenameSuggestion
	for _, nd := range newDefs {
		if nd.Kind != schema.KindTable || nd.Table == nil {
			continue
		}
		od, ok := oldByID[nd.Identity()]
		if !ok || od.Kind != schema.KindTable || od.Table == nil {
			continue
		}

		newByName := make(map[string]schema.Column, len(nd.Table.Columns))
		for _, c := range nd.Table.Columns {
			newByName[c.Name] = c
		}

		dropped := make(map[columnSignature][]schema.Column)
		for _, c := range od.Table.Columns {
			if _, stillPresent := newByName[c.Name]; stillPresent {
				continue
			}
			if consumed[columnKey(nd.Database, nd.Name, c.Name)] {
				continue
			}
			sig := signatureOf(c)
			dropped[sig] = append(dropped[sig], c)
		}

		oldByName := make(map[string]schema.Column, len(od.Table.Columns))
		for _, c := range od.Table.Columns {
			oldByName[c.Name] = c
		}
		added := make(map[columnSignature][]schema.Column)
		for _, c := range nd.Table.Columns {
			if _, existedBefore := oldByName[c.Name]; existedBefore {
				continue
			}
			if consumed[columnKey(nd.Database, nd.Name, c.Name)] {
				continue
			}
			sig := signatureOf(c)
			added[sig] = append(added[sig], c)
		}

		for sig, drops := range dropped {
			adds := added[sig]
			if len(drops) != 1 || len(adds) != 1 {
				continue
			}
			from, to := drops[0].Name, adds[0].Name
			suggestions = append(suggestions, RenameSuggestion{
				Kind:             "column",
				Database:         nd.Database,
				Table:            nd.Name,
				From:             from,
				To:               to,
				Confidence:       "high",
				Reason:           "byte-identical column signature (type, nullable, default, comment)",
				DropOperationKey: columnKey(nd.Database, nd.Name, from),
				AddOperationKey:  columnKey(nd.Database, nd.Name, to),
				ConfirmationSQL:  render.RenameColumn(nd.Database, nd.Name, from, to),
			})
		}
	}
	return suggestions
}

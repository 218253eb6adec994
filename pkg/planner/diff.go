package planner

import (
	"reflect"
	"sort"

	"github.com/pseudomuto/chkit/pkg/compare"
	"github.com/pseudomuto/chkit/pkg/render"
	"github.com/pseudomuto/chkit/pkg/schema"
)

// Diff produces the raw MigrationPlan for moving from oldDefs to newDefs
//, with no rename handling applied. Both arguments must
// already be canonicalized (schema.Canonicalize).
func Diff(oldDefs, newDefs []schema.Definition) *MigrationPlan {
	oldByID := byIdentity(oldDefs)
	newByID := byIdentity(newDefs)

	var ops []Operation
	newDatabases := make(map[string]bool)

	// Step 1: drops for entities present in old but absent from new.
	for _, d := range oldDefs {
		if _, ok := newByID[d.Identity()]; ok {
			continue
		}
		ops = append(ops, dropOperation(d))
	}

	// Step 2 & 3: entities present in new, with or without an old
	// same-identity counterpart.
	for _, d := range newDefs {
		old, existed := oldByID[d.Identity()]
		if !existed {
			ops = append(ops, createOperation(d)...)
			newDatabases[d.Database] = true
			continue
		}
		ops = append(ops, diffPair(old, d)...)
	}

	// Step 4: one create_database per accumulated database, lexicographic.
	dbNames := make([]string, 0, len(newDatabases))
	for db := range newDatabases {
		dbNames = append(dbNames, db)
	}
	sort.Strings(dbNames)
	for _, db := range dbNames {
		ops = append(ops, Operation{
			Type: OpCreateDatabase,
			Key:  databaseKey(db),
			Risk: RiskSafe,
			SQL:  render.CreateDatabase(db),
		})
	}

	sortOperations(ops)

	return &MigrationPlan{
		Operations:        ops,
		RiskSummary:       summarize(ops),
		RenameSuggestions: nil,
	}
}

func dropOperation(d schema.Definition) Operation {
	switch d.Kind {
	case schema.KindTable:
		return Operation{
			Type: OpDropTable,
			Key:  tableKey(d.Database, d.Name),
			Risk: RiskDanger,
			SQL:  render.DropTable(d.Database, d.Name),
		}
	case schema.KindView:
		return Operation{
			Type: OpDropView,
			Key:  viewKey(d.Database, d.Name),
			Risk: RiskCaution,
			SQL:  render.DropView(d.Database, d.Name),
		}
	case schema.KindMaterializedView:
		return Operation{
			Type: OpDropMaterializedView,
			Key:  materializedViewKey(d.Database, d.Name),
			Risk: RiskCaution,
			SQL:  render.DropMaterializedView(d.Database, d.Name),
		}
	}
	return Operation{}
}

func createOperation(d schema.Definition) []Operation {
	switch d.Kind {
	case schema.KindTable:
		return []Operation{{
			Type: OpCreateTable,
			Key:  tableKey(d.Database, d.Name),
			Risk: RiskSafe,
			SQL:  render.CreateTable(d.Database, d.Name, *d.Table),
		}}
	case schema.KindView:
		return []Operation{{
			Type: OpCreateView,
			Key:  viewKey(d.Database, d.Name),
			Risk: RiskSafe,
			SQL:  render.CreateView(d.Database, d.Name, *d.View),
		}}
	case schema.KindMaterializedView:
		return []Operation{{
			Type: OpCreateMaterializedView,
			Key:  materializedViewKey(d.Database, d.Name),
			Risk: RiskSafe,
			SQL:  render.CreateMaterializedView(d.Database, d.Name, *d.MaterializedView),
		}}
	}
	return nil
}

// diffPair compares two definitions of the same identity. A kind mismatch
// (possible when two differently-kinded definitions share database+name
// across old/new loads) is treated as drop-old/create-new, step 2.
func diffPair(old, new schema.Definition) []Operation {
	if old.Kind != new.Kind {
		return append([]Operation{dropOperation(old)}, createOperation(new)...)
	}

	switch new.Kind {
	case schema.KindTable:
		return diffTables(old, new)
	case schema.KindView:
		return diffViews(old, new)
	case schema.KindMaterializedView:
		return diffMaterializedViews(old, new)
	}
	return nil
}

func diffViews(old, new schema.Definition) []Operation {
	if old.View.As == new.View.As && compare.Values(old.View.Comment, new.View.Comment) {
		return nil
	}
	return []Operation{
		dropOperation(old),
		createOperation(new)[0],
	}
}

func diffMaterializedViews(old, new schema.Definition) []Operation {
	o, n := old.MaterializedView, new.MaterializedView
	if o.As == n.As && compare.Values(o.Comment, n.Comment) && o.To == n.To {
		return nil
	}
	return []Operation{
		dropOperation(old),
		createOperation(new)[0],
	}
}

// diffTables implements step 2's table branch: a structural change to
// engine or any key clause forces a recreate; otherwise columns, indexes,
// projections, settings, and TTL are diffed independently.
func diffTables(old, new schema.Definition) []Operation {
	ot, nt := *old.Table, *new.Table
	db, name := new.Database, new.Name

	if ot.Engine != nt.Engine ||
		!compare.Slices(ot.PrimaryKey, nt.PrimaryKey) ||
		!compare.Slices(ot.OrderBy, nt.OrderBy) ||
		!compare.Slices(ot.UniqueKey, nt.UniqueKey) ||
		!compare.Values(ot.PartitionBy, nt.PartitionBy) {
		return []Operation{
			dropOperation(old),
			createOperation(new)[0],
		}
	}

	var ops []Operation
	ops = append(ops, diffColumns(db, name, ot.Columns, nt.Columns)...)
	ops = append(ops, diffIndexes(db, name, ot.Indexes, nt.Indexes)...)
	ops = append(ops, diffProjections(db, name, ot.Projections, nt.Projections)...)
	ops = append(ops, diffSettings(db, name, ot.Settings, nt.Settings)...)
	ops = append(ops, diffTTL(db, name, ot.TTL, nt.TTL)...)
	return ops
}

func diffColumns(db, table string, old, new []schema.Column) []Operation {
	oldByName := make(map[string]schema.Column, len(old))
	for _, c := range old {
		oldByName[c.Name] = c
	}
	newByName := make(map[string]schema.Column, len(new))
	for _, c := range new {
		newByName[c.Name] = c
	}

	var ops []Operation
	for _, c := range new {
		o, existed := oldByName[c.Name]
		if !existed {
			ops = append(ops, Operation{
				Type: OpAlterTableAddColumn,
				Key:  columnKey(db, table, c.Name),
				Risk: RiskSafe,
				SQL:  render.AddColumn(db, table, c),
			})
			continue
		}
		if !columnFieldsEqual(o, c) {
			ops = append(ops, Operation{
				Type: OpAlterTableModifyColumn,
				Key:  columnKey(db, table, c.Name),
				Risk: RiskCaution,
				SQL:  render.ModifyColumn(db, table, c),
			})
		}
	}
	for _, c := range old {
		if _, ok := newByName[c.Name]; ok {
			continue
		}
		ops = append(ops, Operation{
			Type: OpAlterTableDropColumn,
			Key:  columnKey(db, table, c.Name),
			Risk: RiskDanger,
			SQL:  render.DropColumn(db, table, c.Name),
		})
	}
	return ops
}

func diffIndexes(db, table string, old, new []schema.Index) []Operation {
	oldByName := make(map[string]schema.Index, len(old))
	for _, i := range old {
		oldByName[i.Name] = i
	}
	newByName := make(map[string]schema.Index, len(new))
	for _, i := range new {
		newByName[i.Name] = i
	}

	var ops []Operation
	for _, idx := range new {
		o, existed := oldByName[idx.Name]
		if !existed {
			ops = append(ops, Operation{
				Type: OpAlterTableAddIndex, Key: indexKey(db, table, idx.Name), Risk: RiskCaution,
				SQL: render.AddIndex(db, table, idx),
			})
			continue
		}
		if o != idx {
			ops = append(ops,
				Operation{Type: OpAlterTableDropIndex, Key: indexKey(db, table, idx.Name), Risk: RiskCaution, SQL: render.DropIndex(db, table, idx.Name)},
				Operation{Type: OpAlterTableAddIndex, Key: indexKey(db, table, idx.Name), Risk: RiskCaution, SQL: render.AddIndex(db, table, idx)},
			)
		}
	}
	for _, idx := range old {
		if _, ok := newByName[idx.Name]; ok {
			continue
		}
		ops = append(ops, Operation{
			Type: OpAlterTableDropIndex, Key: indexKey(db, table, idx.Name), Risk: RiskCaution,
			SQL: render.DropIndex(db, table, idx.Name),
		})
	}
	return ops
}

func diffProjections(db, table string, old, new []schema.Projection) []Operation {
	oldByName := make(map[string]schema.Projection, len(old))
	for _, p := range old {
		oldByName[p.Name] = p
	}
	newByName := make(map[string]schema.Projection, len(new))
	for _, p := range new {
		newByName[p.Name] = p
	}

	var ops []Operation
	for _, p := range new {
		o, existed := oldByName[p.Name]
		if !existed {
			ops = append(ops, Operation{
				Type: OpAlterTableAddProjection, Key: projectionKey(db, table, p.Name), Risk: RiskCaution,
				SQL: render.AddProjection(db, table, p),
			})
			continue
		}
		if o != p {
			ops = append(ops,
				Operation{Type: OpAlterTableDropProjection, Key: projectionKey(db, table, p.Name), Risk: RiskCaution, SQL: render.DropProjection(db, table, p.Name)},
				Operation{Type: OpAlterTableAddProjection, Key: projectionKey(db, table, p.Name), Risk: RiskCaution, SQL: render.AddProjection(db, table, p)},
			)
		}
	}
	for _, p := range old {
		if _, ok := newByName[p.Name]; ok {
			continue
		}
		ops = append(ops, Operation{
			Type: OpAlterTableDropProjection, Key: projectionKey(db, table, p.Name), Risk: RiskCaution,
			SQL: render.DropProjection(db, table, p.Name),
		})
	}
	return ops
}

func diffSettings(db, table string, oldSettings, newSettings map[string]any) []Operation {
	var ops []Operation
	for _, k := range schema.SortedSettingKeys(schema.Table{Settings: newSettings}) {
		v := newSettings[k]
		oldVal, existed := oldSettings[k]
		if !existed || !reflect.DeepEqual(oldVal, v) {
			ops = append(ops, Operation{
				Type: OpAlterTableModifySetting, Key: settingKey(db, table, k), Risk: RiskCaution,
				SQL: render.ModifySetting(db, table, k, v),
			})
		}
	}
	for _, k := range schema.SortedSettingKeys(schema.Table{Settings: oldSettings}) {
		if _, ok := newSettings[k]; ok {
			continue
		}
		ops = append(ops, Operation{
			Type: OpAlterTableResetSetting, Key: settingKey(db, table, k), Risk: RiskCaution,
			SQL: render.ResetSetting(db, table, k),
		})
	}
	return ops
}

func diffTTL(db, table string, old, new *string) []Operation {
	if compare.Values(old, new) {
		return nil
	}
	return []Operation{{
		Type: OpAlterTableModifyTTL, Key: ttlKey(db, table), Risk: RiskCaution,
		SQL: render.ModifyTTL(db, table, new),
	}}
}

func columnFieldsEqual(a, b schema.Column) bool {
	return a.Type == b.Type &&
		compare.Pointers(a.Nullable, b.Nullable) &&
		reflect.DeepEqual(a.Default, b.Default) &&
		compare.Values(a.Comment, b.Comment)
}

// Package render is a pure mapping from a planned change to ClickHouse DDL
// text. Every function here is a function only of its arguments —
// no timestamps, no randomness, no I/O — so the same logical change always
// renders identical SQL.
package render

import (
	"fmt"
	"strings"

	"github.com/pseudomuto/chkit/pkg/schema"
	"github.com/pseudomuto/chkit/pkg/sqlutil"
)

// CreateDatabase renders a CREATE DATABASE statement.
func CreateDatabase(db string) string {
	return sqlutil.NewBuilder().
		Keyword("CREATE", "DATABASE").
		IfNotExists().
		Ident(db).
		String()
}

// CreateTable renders a full CREATE TABLE statement for t.
func CreateTable(db, name string, t schema.Table) string {
	b := sqlutil.NewBuilder().Keyword("CREATE", "TABLE").IfNotExists().Qualified(db, name)

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = columnDefinition(c)
	}
	for _, idx := range t.Indexes {
		cols = append(cols, indexDefinition(idx))
	}
	for _, p := range t.Projections {
		cols = append(cols, projectionDefinition(p))
	}
	b.Raw("(" + strings.Join(cols, ", ") + ")")

	b.Keyword("ENGINE", "=").Raw(t.Engine)

	appendKeyClause(b, "ORDER BY", t.OrderBy)
	appendKeyClause(b, "PRIMARY KEY", t.PrimaryKey)
	appendKeyClause(b, "UNIQUE KEY", t.UniqueKey)

	if t.PartitionBy != nil && *t.PartitionBy != "" {
		b.Keyword("PARTITION BY").Raw(*t.PartitionBy)
	}
	if t.TTL != nil && *t.TTL != "" {
		b.Keyword("TTL").Raw(*t.TTL)
	}

	if len(t.Settings) > 0 {
		b.Keyword("SETTINGS").Raw(settingsClause(t))
	}

	return b.String()
}

// DropTable renders a DROP TABLE statement.
func DropTable(db, name string) string {
	return sqlutil.NewBuilder().Keyword("DROP", "TABLE").IfExists().Qualified(db, name).String()
}

// CreateView renders a CREATE VIEW statement.
func CreateView(db, name string, v schema.View) string {
	b := sqlutil.NewBuilder().Keyword("CREATE", "VIEW").IfNotExists().Qualified(db, name)
	if v.Comment != nil && *v.Comment != "" {
		b.Keyword("COMMENT").StringLiteral(*v.Comment)
	}
	b.Keyword("AS").Raw(v.As)
	return b.String()
}

// DropView renders a DROP VIEW statement.
func DropView(db, name string) string {
	return sqlutil.NewBuilder().Keyword("DROP", "VIEW").IfExists().Qualified(db, name).String()
}

// CreateMaterializedView renders a CREATE MATERIALIZED VIEW statement.
func CreateMaterializedView(db, name string, mv schema.MaterializedView) string {
	b := sqlutil.NewBuilder().Keyword("CREATE", "MATERIALIZED", "VIEW").IfNotExists().Qualified(db, name)
	b.Keyword("TO").Qualified(mv.To.Database, mv.To.Name)
	if mv.Comment != nil && *mv.Comment != "" {
		b.Keyword("COMMENT").StringLiteral(*mv.Comment)
	}
	b.Keyword("AS").Raw(mv.As)
	return b.String()
}

// DropMaterializedView renders a DROP VIEW statement for a materialized
// view (ClickHouse materialized views are dropped the same way as views).
func DropMaterializedView(db, name string) string {
	return sqlutil.NewBuilder().Keyword("DROP", "VIEW").IfExists().Qualified(db, name).String()
}

// AddColumn renders an ALTER TABLE ... ADD COLUMN statement.
func AddColumn(db, table string, c schema.Column) string {
	return alterTable(db, table).
		Keyword("ADD", "COLUMN").IfNotExists().
		Raw(columnDefinition(c)).
		String()
}

// ModifyColumn renders an ALTER TABLE ... MODIFY COLUMN statement.
func ModifyColumn(db, table string, c schema.Column) string {
	return alterTable(db, table).
		Keyword("MODIFY", "COLUMN").
		Raw(columnDefinition(c)).
		String()
}

// DropColumn renders an ALTER TABLE ... DROP COLUMN statement.
func DropColumn(db, table, col string) string {
	return alterTable(db, table).
		Keyword("DROP", "COLUMN").IfExists().
		Ident(col).
		String()
}

// RenameColumn renders an ALTER TABLE ... RENAME COLUMN statement.
func RenameColumn(db, table, from, to string) string {
	return alterTable(db, table).
		Keyword("RENAME", "COLUMN").
		Ident(from).Keyword("TO").Ident(to).
		String()
}

// RenameTable renders an ALTER TABLE db.table RENAME TO newDB.newName
// statement; an empty newDB keeps the table in db.
func RenameTable(db, table, newDB, newName string) string {
	target := newDB
	if target == "" {
		target = db
	}
	return alterTable(db, table).
		Keyword("RENAME", "TO").Qualified(target, newName).
		String()
}

// AddIndex renders an ALTER TABLE ... ADD INDEX statement.
func AddIndex(db, table string, idx schema.Index) string {
	return alterTable(db, table).
		Keyword("ADD", "INDEX").IfNotExists().
		Raw(indexDefinition(idx)).
		String()
}

// DropIndex renders an ALTER TABLE ... DROP INDEX statement.
func DropIndex(db, table, idxName string) string {
	return alterTable(db, table).
		Keyword("DROP", "INDEX").IfExists().
		Ident(idxName).
		String()
}

// AddProjection renders an ALTER TABLE ... ADD PROJECTION statement.
func AddProjection(db, table string, p schema.Projection) string {
	return alterTable(db, table).
		Keyword("ADD", "PROJECTION").IfNotExists().
		Raw(projectionDefinition(p)).
		String()
}

// DropProjection renders an ALTER TABLE ... DROP PROJECTION statement.
func DropProjection(db, table, projName string) string {
	return alterTable(db, table).
		Keyword("DROP", "PROJECTION").IfExists().
		Ident(projName).
		String()
}

// ModifySetting renders an ALTER TABLE ... MODIFY SETTING statement.
func ModifySetting(db, table, key string, value any) string {
	return alterTable(db, table).
		Keyword("MODIFY", "SETTING").
		Raw(fmt.Sprintf("%s = %s", key, sqlutil.FormatDefault(value))).
		String()
}

// ResetSetting renders an ALTER TABLE ... RESET SETTING statement.
func ResetSetting(db, table, key string) string {
	return alterTable(db, table).
		Keyword("RESET", "SETTING").
		Raw(key).
		String()
}

// ModifyTTL renders an ALTER TABLE ... MODIFY TTL statement, or REMOVE TTL
// when ttl is nil or empty.
func ModifyTTL(db, table string, ttl *string) string {
	if ttl == nil || *ttl == "" {
		return alterTable(db, table).Keyword("REMOVE", "TTL").String()
	}
	return alterTable(db, table).Keyword("MODIFY", "TTL").Raw(*ttl).String()
}

func alterTable(db, table string) *sqlutil.Builder {
	return sqlutil.NewBuilder().Keyword("ALTER", "TABLE").Qualified(db, table)
}

func appendKeyClause(b *sqlutil.Builder, keyword string, entries []string) {
	if len(entries) == 0 {
		return
	}
	flat := sqlutil.SplitKeyClause(entries)
	b.Keyword(keyword).Raw("(" + strings.Join(flat, ", ") + ")")
}

func columnDefinition(c schema.Column) string {
	parts := []string{sqlutil.QuoteIdentifier(c.Name), columnType(c)}
	if c.Default != nil {
		parts = append(parts, "DEFAULT", sqlutil.FormatDefault(c.Default))
	}
	if c.Comment != nil && *c.Comment != "" {
		parts = append(parts, "COMMENT", sqlutil.QuoteStringLiteral(*c.Comment))
	}
	return strings.Join(parts, " ")
}

func columnType(c schema.Column) string {
	if c.Nullable != nil && *c.Nullable && !strings.HasPrefix(c.Type, "Nullable(") {
		return fmt.Sprintf("Nullable(%s)", c.Type)
	}
	return c.Type
}

func indexDefinition(idx schema.Index) string {
	return fmt.Sprintf("INDEX %s %s TYPE %s GRANULARITY %d",
		sqlutil.QuoteIdentifier(idx.Name), idx.Expression, idx.Type, idx.Granularity)
}

func projectionDefinition(p schema.Projection) string {
	return fmt.Sprintf("PROJECTION %s (%s)", sqlutil.QuoteIdentifier(p.Name), p.Query)
}

func settingsClause(t schema.Table) string {
	keys := schema.SortedSettingKeys(t)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s = %s", k, sqlutil.FormatDefault(t.Settings[k]))
	}
	return strings.Join(parts, ", ")
}

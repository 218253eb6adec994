package chclient

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/pseudomuto/chkit/pkg/schema"
)

// systemDatabases lists the databases ClickHouse ships itself,
// excluded from introspection the same way housekeeper's
// pkg/clickhouse.buildSystemDatabaseExclusion keeps its own tooling out of
// the diff.
var systemDatabases = []string{"system", "information_schema", "INFORMATION_SCHEMA"}

// Introspect builds the "actual" side of a drift comparison by
// querying system.tables/system.columns/system.data_skipping_indices/
// system.projections for every database in databases (or every non-system
// database when databases is empty), returning typed schema.Definition
// values rather than parsed DDL text — the drift comparer works on the same
// structured model the schema package does, so introspection builds
// that model directly instead of round-tripping through a SQL parser the
// way housekeeper's extractTables/extractViews do for their own DDL-text
// model.
func Introspect(ctx context.Context, c *Client, databases []string) ([]schema.Definition, error) {
	tableRows, err := introspectTables(ctx, c, databases)
	if err != nil {
		return nil, err
	}

	var defs []schema.Definition
	for _, tr := range tableRows {
		switch tr.engine {
		case "View":
			defs = append(defs, schema.Definition{
				Kind:     schema.KindView,
				Database: tr.database,
				Name:     tr.name,
				View: &schema.View{
					As:      strings.TrimSpace(tr.asSelect),
					Comment: optionalString(tr.comment),
				},
			})
		case "MaterializedView":
			to := materializedViewTarget(tr.createTableQuery, tr.database)
			defs = append(defs, schema.Definition{
				Kind:     schema.KindMaterializedView,
				Database: tr.database,
				Name:     tr.name,
				MaterializedView: &schema.MaterializedView{
					To:      to,
					As:      strings.TrimSpace(tr.asSelect),
					Comment: optionalString(tr.comment),
				},
			})
		default:
			table, err := introspectTable(ctx, c, tr)
			if err != nil {
				return nil, err
			}
			defs = append(defs, schema.Definition{
				Kind: schema.KindTable, Database: tr.database, Name: tr.name, Table: table,
			})
		}
	}

	return defs, nil
}

type tableRow struct {
	database         string
	name             string
	engine           string
	comment          string
	asSelect         string
	createTableQuery string
	engineFull       string
	primaryKey       string
	sortingKey       string
	partitionKey     string
}

func introspectTables(ctx context.Context, c *Client, databases []string) ([]tableRow, error) {
	condition, args := databaseCondition(databases)
	query := `
		SELECT
			database, name, engine, comment, as_select, create_table_query,
			engine_full, primary_key, sorting_key, partition_key
		FROM system.tables
		WHERE ` + condition + `
		  AND is_temporary = 0
		  AND name NOT LIKE '.inner_id.%'
		  AND name NOT LIKE '.inner.%'
		ORDER BY database, name`

	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying system.tables")
	}
	defer rows.Close()

	var out []tableRow
	for rows.Next() {
		var tr tableRow
		if err := rows.Scan(
			&tr.database, &tr.name, &tr.engine, &tr.comment, &tr.asSelect, &tr.createTableQuery,
			&tr.engineFull, &tr.primaryKey, &tr.sortingKey, &tr.partitionKey,
		); err != nil {
			return nil, errors.Wrap(err, "scanning system.tables row")
		}
		out = append(out, tr)
	}
	return out, nil
}

func introspectTable(ctx context.Context, c *Client, tr tableRow) (*schema.Table, error) {
	columns, err := introspectColumns(ctx, c, tr.database, tr.name)
	if err != nil {
		return nil, err
	}
	indexes, err := introspectIndexes(ctx, c, tr.database, tr.name)
	if err != nil {
		return nil, err
	}
	projections, err := introspectProjections(ctx, c, tr.database, tr.name)
	if err != nil {
		return nil, err
	}

	t := &schema.Table{
		Columns:     columns,
		Engine:      normalizeEngineFull(tr.engine, tr.engineFull),
		PrimaryKey:  splitNonEmpty(tr.primaryKey),
		OrderBy:     splitNonEmpty(tr.sortingKey),
		Indexes:     indexes,
		Projections: projections,
	}
	if tr.partitionKey != "" {
		t.PartitionBy = &tr.partitionKey
	}
	if ttl := extractTTL(tr.createTableQuery); ttl != "" {
		t.TTL = &ttl
	}
	if settings := extractSettings(tr.engineFull); len(settings) > 0 {
		t.Settings = settings
	}
	return t, nil
}

func introspectColumns(ctx context.Context, c *Client, database, table string) ([]schema.Column, error) {
	rows, err := c.Query(ctx, `
		SELECT name, type, default_kind, default_expression, comment, is_in_partition_key
		FROM system.columns
		WHERE database = ? AND table = ?
		ORDER BY position`, database, table)
	if err != nil {
		return nil, errors.Wrapf(err, "querying system.columns for %s.%s", database, table)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			name, typ, defaultKind, defaultExpr, comment string
			inPartitionKey                               bool
		)
		if err := rows.Scan(&name, &typ, &defaultKind, &defaultExpr, &comment, &inPartitionKey); err != nil {
			return nil, errors.Wrap(err, "scanning system.columns row")
		}

		col := schema.Column{Name: name, Type: typ}
		if strings.HasPrefix(typ, "Nullable(") {
			nullable := true
			col.Nullable = &nullable
		}
		if defaultExpr != "" {
			switch defaultKind {
			case "DEFAULT", "MATERIALIZED", "ALIAS":
				col.Default = "fn:" + defaultExpr
			default:
				col.Default = defaultExpr
			}
		}
		if comment != "" {
			col.Comment = &comment
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func introspectIndexes(ctx context.Context, c *Client, database, table string) ([]schema.Index, error) {
	rows, err := c.Query(ctx, `
		SELECT name, type, expr, granularity
		FROM system.data_skipping_indices
		WHERE database = ? AND table = ?
		ORDER BY name`, database, table)
	if err != nil {
		return nil, errors.Wrapf(err, "querying system.data_skipping_indices for %s.%s", database, table)
	}
	defer rows.Close()

	var idxs []schema.Index
	for rows.Next() {
		var idx schema.Index
		var granularity uint64
		if err := rows.Scan(&idx.Name, &idx.Type, &idx.Expression, &granularity); err != nil {
			return nil, errors.Wrap(err, "scanning system.data_skipping_indices row")
		}
		idx.Granularity = int(granularity)
		idxs = append(idxs, idx)
	}
	return idxs, nil
}

func introspectProjections(ctx context.Context, c *Client, database, table string) ([]schema.Projection, error) {
	rows, err := c.Query(ctx, `
		SELECT name, query
		FROM system.projections
		WHERE database = ? AND table = ?
		ORDER BY name`, database, table)
	if err != nil {
		return nil, errors.Wrapf(err, "querying system.projections for %s.%s", database, table)
	}
	defer rows.Close()

	var projs []schema.Projection
	for rows.Next() {
		var p schema.Projection
		if err := rows.Scan(&p.Name, &p.Query); err != nil {
			return nil, errors.Wrap(err, "scanning system.projections row")
		}
		projs = append(projs, p)
	}
	return projs, nil
}

func databaseCondition(databases []string) (string, []any) {
	if len(databases) == 0 {
		placeholders := make([]string, len(systemDatabases))
		args := make([]any, len(systemDatabases))
		for i, db := range systemDatabases {
			placeholders[i] = "?"
			args[i] = db
		}
		return "database NOT IN (" + strings.Join(placeholders, ", ") + ")", args
	}

	placeholders := make([]string, len(databases))
	args := make([]any, len(databases))
	for i, db := range databases {
		placeholders[i] = "?"
		args[i] = db
	}
	return "database IN (" + strings.Join(placeholders, ", ") + ")", args
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

var toClausePattern = regexp.MustCompile(`(?i)\bTO\s+(` + "`" + `?[\w.]+` + "`" + `?(?:\.` + "`" + `?[\w]+` + "`" + `?)?)\s*\(`)

// materializedViewTarget extracts the "TO db.table" target from a
// materialized view's create_table_query, the same regex-over-DDL-text
// approach housekeeper's cleanViewStatement uses to strip clauses
// ClickHouse adds back into CREATE statements it returns.
func materializedViewTarget(createTableQuery, defaultDatabase string) schema.TableRef {
	m := toClausePattern.FindStringSubmatch(createTableQuery)
	if m == nil {
		return schema.TableRef{Database: defaultDatabase}
	}
	ref := strings.ReplaceAll(m[1], "`", "")
	db, name, ok := strings.Cut(ref, ".")
	if !ok {
		return schema.TableRef{Database: defaultDatabase, Name: ref}
	}
	return schema.TableRef{Database: db, Name: name}
}

var ttlPattern = regexp.MustCompile(`(?i)\bTTL\s+(.+?)(?:\s+SETTINGS\b|$)`)

// extractTTL pulls the TTL expression out of a table's create_table_query.
// ClickHouse doesn't expose TTL as its own system.tables column, so this
// mirrors housekeeper's DDL-text regex extraction rather than inventing a
// query against a column that doesn't exist.
func extractTTL(createTableQuery string) string {
	m := ttlPattern.FindStringSubmatch(createTableQuery)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(m[1]), ";"))
}

var settingsPattern = regexp.MustCompile(`(?i)\bSETTINGS\s+(.+)$`)

// extractSettings pulls a table's SETTINGS clause out of engine_full, the
// same best-effort text scrape extractTTL performs. Values are parsed as
// numbers/bools where possible so the drift comparer's scalar equality
// check behaves the same as it does for schema-declared settings.
func extractSettings(engineFull string) map[string]any {
	m := settingsPattern.FindStringSubmatch(engineFull)
	if m == nil {
		return nil
	}

	settings := make(map[string]any)
	for _, part := range strings.Split(m[1], ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key := strings.TrimSpace(k)
		val := strings.Trim(strings.TrimSpace(v), "'\"")
		if key == "" {
			continue
		}
		settings[key] = parseSettingValue(val)
	}
	return settings
}

func parseSettingValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// normalizeEngineFull returns the bare engine name when engine_full carries
// no parameters beyond the name ClickHouse already reports in "engine", and
// the full parameterized form (trimmed of a trailing SETTINGS clause,
// already split out by extractSettings) otherwise.
func normalizeEngineFull(engine, engineFull string) string {
	full := settingsPattern.ReplaceAllString(engineFull, "")
	full = strings.TrimSpace(full)
	if full == "" || full == engine {
		return engine
	}
	return full
}

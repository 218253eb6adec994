// Package schema defines chkit's declarative schema model — the typed
// objects a project's desired ClickHouse schema is expressed in — along
// with a deterministic canonical form and a structural validator.
//
// Unlike the ClickHouse DDL text housekeeper parses with a grammar, this
// model is already structured: projects describe their schema as typed
// Go values (commonly loaded from YAML via LoadDefinitionsYAML), and the
// canonicalizer's job is purely to normalize that structure into a stable
// form so diffs are deterministic.
package schema

import "time"

// Kind identifies which variant of the SchemaDefinition tagged union a
// Definition holds. The (Kind, Database, Name) triple is a definition's
// identity key.
type Kind string

const (
	KindTable            Kind = "table"
	KindView             Kind = "view"
	KindMaterializedView Kind = "materialized_view"
)

// kindRank orders kinds for the canonical sort: table=0, view=1,
// materialized_view=2.
func (k Kind) kindRank() int {
	switch k {
	case KindTable:
		return 0
	case KindView:
		return 1
	case KindMaterializedView:
		return 2
	default:
		return 3
	}
}

type (
	// Definition is one entry in a schema's definition set: a tagged union
	// over Table, View, and MaterializedView. Exactly one of the Table,
	// View, MaterializedView fields is non-nil, matching Kind.
	Definition struct {
		Kind             Kind              `yaml:"kind"`
		Database         string            `yaml:"database"`
		Name             string            `yaml:"name"`
		Table            *Table            `yaml:"table,omitempty"`
		View             *View             `yaml:"view,omitempty"`
		MaterializedView *MaterializedView `yaml:"materializedView,omitempty"`
	}

	// Identity is the (kind, database, name) key that uniquely locates a
	// Definition within a set.
	Identity struct {
		Kind     Kind
		Database string
		Name     string
	}

	// TableRef names a database-qualified table, used for renamedFrom and
	// materialized view targets. Database is optional (empty means "same
	// database as the enclosing definition").
	TableRef struct {
		Database string `yaml:"database,omitempty"`
		Name     string `yaml:"name"`
	}

	// Column describes one column of a Table.
	Column struct {
		Name string `yaml:"name"`
		// Type is the ClickHouse type string, which may be composite
		// (e.g. "Nullable(LowCardinality(String))").
		Type string `yaml:"type"`
		// Nullable is optional metadata distinct from a Nullable(...) type
		// wrapper; nil means unspecified.
		Nullable *bool `yaml:"nullable,omitempty"`
		// Default holds a string, number, or bool. A string value prefixed
		// "fn:" renders as raw SQL with the prefix stripped; any other
		// string is quoted as a SQL string literal.
		Default     any     `yaml:"default,omitempty"`
		Comment     *string `yaml:"comment,omitempty"`
		RenamedFrom *string `yaml:"renamedFrom,omitempty"`
	}

	// Index is a ClickHouse data-skipping index declaration.
	Index struct {
		Name        string `yaml:"name"`
		Expression  string `yaml:"expression"`
		Type        string `yaml:"type"`
		Granularity int     `yaml:"granularity"`
	}

	// Projection is a table projection declaration.
	Projection struct {
		Name  string `yaml:"name"`
		Query string `yaml:"query"`
	}

	// Table is the Table variant of SchemaDefinition.
	Table struct {
		Columns []Column `yaml:"columns"`
		// Engine is an opaque engine string, e.g. "MergeTree" or
		// "ReplacingMergeTree(version)".
		Engine string `yaml:"engine"`
		// PrimaryKey, OrderBy, and UniqueKey are ordered lists of column
		// expressions. Each entry may itself be a comma-delimited compound
		// form (e.g. "a, b, (c, d)" as a single list entry representing a
		// tuple) — see pkg/sqlutil.SplitTopLevel.
		PrimaryKey  []string       `yaml:"primaryKey,omitempty"`
		OrderBy     []string       `yaml:"orderBy,omitempty"`
		UniqueKey   []string       `yaml:"uniqueKey,omitempty"`
		PartitionBy *string        `yaml:"partitionBy,omitempty"`
		TTL         *string        `yaml:"ttl,omitempty"`
		Settings    map[string]any `yaml:"settings,omitempty"`
		Indexes     []Index        `yaml:"indexes,omitempty"`
		Projections []Projection   `yaml:"projections,omitempty"`
		RenamedFrom *TableRef      `yaml:"renamedFrom,omitempty"`
	}

	// View is the View variant of SchemaDefinition.
	View struct {
		As      string  `yaml:"as"`
		Comment *string `yaml:"comment,omitempty"`
	}

	// MaterializedView is the MaterializedView variant of SchemaDefinition.
	MaterializedView struct {
		To      TableRef `yaml:"to"`
		As      string   `yaml:"as"`
		Comment *string  `yaml:"comment,omitempty"`
	}

	// Snapshot is the persisted, canonicalized definition set written after
	// a successful artifact generation.
	Snapshot struct {
		Version     int          `yaml:"version" json:"version"`
		GeneratedAt time.Time    `yaml:"generatedAt" json:"generatedAt"`
		Definitions []Definition `yaml:"definitions" json:"definitions"`
	}
)

// Identity returns d's (kind, database, name) identity key.
func (d Definition) Identity() Identity {
	return Identity{Kind: d.Kind, Database: d.Database, Name: d.Name}
}

// String renders an identity as "kind:database.name", the form used inside
// operation keys and drift object codes.
func (id Identity) String() string {
	return string(id.Kind) + ":" + id.Database + "." + id.Name
}

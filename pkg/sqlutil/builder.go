package sqlutil

import (
	"fmt"
	"strings"
)

// Builder provides a fluent interface for assembling ClickHouse DDL
// statements one clause at a time, used by pkg/render to keep each
// operation's SQL generation linear and easy to read instead of building
// strings with ad-hoc concatenation.
type Builder struct {
	parts []string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{parts: make([]string, 0, 8)}
}

// Keyword appends one or more bare keyword tokens (e.g. "CREATE", "TABLE").
func (b *Builder) Keyword(tokens ...string) *Builder {
	b.parts = append(b.parts, tokens...)
	return b
}

// Ident appends a quoted identifier.
func (b *Builder) Ident(name string) *Builder {
	if name != "" {
		b.parts = append(b.parts, QuoteIdentifier(name))
	}
	return b
}

// Qualified appends a database.name reference; database may be empty.
func (b *Builder) Qualified(database, name string) *Builder {
	b.parts = append(b.parts, QuoteQualified(database, name))
	return b
}

// IfExists appends "IF EXISTS".
func (b *Builder) IfExists() *Builder { return b.Keyword("IF", "EXISTS") }

// IfNotExists appends "IF NOT EXISTS".
func (b *Builder) IfNotExists() *Builder { return b.Keyword("IF", "NOT", "EXISTS") }

// Raw appends a raw, pre-formatted SQL fragment verbatim.
func (b *Builder) Raw(sql string) *Builder {
	if sql != "" {
		b.parts = append(b.parts, sql)
	}
	return b
}

// StringLiteral appends a single-quoted, escaped string literal.
func (b *Builder) StringLiteral(value string) *Builder {
	b.parts = append(b.parts, QuoteStringLiteral(value))
	return b
}

// String joins the accumulated parts with a single space and a trailing
// semicolon.
func (b *Builder) String() string {
	if len(b.parts) == 0 {
		return ""
	}
	return strings.Join(b.parts, " ") + ";"
}

// Fragment joins the accumulated parts with a single space, without a
// trailing semicolon — useful for building a clause that's embedded in a
// larger statement.
func (b *Builder) Fragment() string {
	return strings.Join(b.parts, " ")
}

// FormatDefault renders a column/setting default value per the renderer's
// rule: strings prefixed "fn:" are raw SQL with the prefix
// stripped, other strings are single-quoted, and everything else
// (numbers/booleans) is rendered verbatim with fmt.Sprint.
func FormatDefault(value any) string {
	switch v := value.(type) {
	case string:
		if strings.HasPrefix(v, "fn:") {
			return strings.TrimPrefix(v, "fn:")
		}
		return QuoteStringLiteral(v)
	default:
		return fmt.Sprint(v)
	}
}

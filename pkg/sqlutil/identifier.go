// Package sqlutil provides small, dependency-free building blocks shared by
// the renderer, drift comparer, and planner: identifier quoting, a
// paren/quote-aware comma splitter for key-clause expressions, and a fluent
// SQL statement builder. None of it depends on a specific schema shape, so
// it lives apart from pkg/schema.
package sqlutil

import "strings"

// simpleIdentifier reports whether name needs no quoting at all: it matches
// [A-Za-z_][A-Za-z0-9_]*.
func simpleIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isLetter {
			return false
		}
		if i > 0 && !isLetter && !isDigit {
			return false
		}
	}
	return true
}

// QuoteIdentifier renders name per the renderer's identifier rule:
// simple identifiers are emitted bare, everything else is backtick-quoted
// with inner backticks doubled.
func QuoteIdentifier(name string) string {
	if simpleIdentifier(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteQualified renders a "database.name" reference, quoting each part
// independently.
func QuoteQualified(database, name string) string {
	if database == "" {
		return QuoteIdentifier(name)
	}
	return QuoteIdentifier(database) + "." + QuoteIdentifier(name)
}

// QuoteStringLiteral single-quotes a raw string value, doubling embedded
// single quotes, for use as a SQL string literal.
func QuoteStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

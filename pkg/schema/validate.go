package schema

import (
	"fmt"

	"github.com/pseudomuto/chkit/pkg/chkerr"
	"github.com/pseudomuto/chkit/pkg/sqlutil"
)

// Validate checks defs against the schema's structural invariants and
// returns every violation found, or nil if defs is sound.
//
// Validate is run on the raw, loaded definition set before Canonicalize's
// last-occurrence-wins deduplication collapses same-identity entries — that
// way two genuinely conflicting definitions for the same (kind, database,
// name) are reported as a duplicate_object_name issue instead of being
// silently resolved. Canonicalize is still the function that produces the
// stable form used downstream by the planner, renderer, and drift comparer.
func Validate(defs []Definition) []chkerr.Issue {
	var issues []chkerr.Issue

	seen := make(map[Identity]bool, len(defs))
	for _, d := range defs {
		id := d.Identity()
		if seen[id] {
			issues = append(issues, chkerr.Issue{
				Code:    "duplicate_object_name",
				Message: fmt.Sprintf("%s is declared more than once", id),
			})
			continue
		}
		seen[id] = true

		if d.Kind == KindTable && d.Table != nil {
			issues = append(issues, validateTable(id, *d.Table)...)
		}
	}

	return issues
}

func validateTable(id Identity, t Table) []chkerr.Issue {
	var issues []chkerr.Issue

	colSeen := make(map[string]bool, len(t.Columns))
	colNames := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if colSeen[c.Name] {
			issues = append(issues, chkerr.Issue{
				Code:    "duplicate_column_name",
				Message: fmt.Sprintf("%s: column %q declared more than once", id, c.Name),
			})
		}
		colSeen[c.Name] = true
		colNames[c.Name] = true
	}

	idxSeen := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if idxSeen[idx.Name] {
			issues = append(issues, chkerr.Issue{
				Code:    "duplicate_index_name",
				Message: fmt.Sprintf("%s: index %q declared more than once", id, idx.Name),
			})
		}
		idxSeen[idx.Name] = true
	}

	projSeen := make(map[string]bool, len(t.Projections))
	for _, p := range t.Projections {
		if projSeen[p.Name] {
			issues = append(issues, chkerr.Issue{
				Code:    "duplicate_projection_name",
				Message: fmt.Sprintf("%s: projection %q declared more than once", id, p.Name),
			})
		}
		projSeen[p.Name] = true
	}

	issues = append(issues, checkKeyColumns(id, "primary_key_missing_column", t.PrimaryKey, colNames)...)
	issues = append(issues, checkKeyColumns(id, "order_by_missing_column", t.OrderBy, colNames)...)

	return issues
}

// checkKeyColumns validates that every plain-identifier entry in a key
// clause names a declared column. Entries that aren't bare identifiers
// (function calls, tuples, expressions) aren't name-checked here — there's
// no declared column they could refer to by exact name, and rejecting them
// would require evaluating arbitrary SQL expressions.
func checkKeyColumns(id Identity, code string, entries []string, colNames map[string]bool) []chkerr.Issue {
	var issues []chkerr.Issue
	for _, raw := range sqlutil.SplitKeyClause(entries) {
		name := stripBackticks(raw)
		if !isPlainIdentifier(name) {
			continue
		}
		if !colNames[name] {
			issues = append(issues, chkerr.Issue{
				Code:    code,
				Message: fmt.Sprintf("%s: %q refers to an undeclared column", id, name),
			})
		}
	}
	return issues
}

func stripBackticks(s string) string {
	if len(s) >= 2 && s[0] == '`' && s[len(s)-1] == '`' {
		return s[1 : len(s)-1]
	}
	return s
}

func isPlainIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
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

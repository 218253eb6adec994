// Package scope implements the table selector shared by the generate,
// migrate, and drift commands: an optional, comma-separated list of globs
// or literal "database.table" names that narrows which tables a command
// operates on (GLOSSARY: Scope).
package scope

import (
	"path"
	"strings"
)

// Scope is a parsed --table selector. A zero-value Scope is disabled and
// matches everything.
type Scope struct {
	Selectors []string
}

// Parse splits a comma-separated --table flag value into a Scope. An empty
// raw string returns a disabled Scope.
func Parse(raw string) Scope {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Scope{}
	}

	var selectors []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			selectors = append(selectors, part)
		}
	}
	return Scope{Selectors: selectors}
}

// Enabled reports whether s carries any selector at all.
func (s Scope) Enabled() bool { return len(s.Selectors) > 0 }

// MatchTable reports whether database.name satisfies one of s's selectors,
// matched as a shell glob (path.Match) against both the full
// "database.name" form and the bare name. A disabled scope matches
// everything.
func (s Scope) MatchTable(database, name string) bool {
	if !s.Enabled() {
		return true
	}

	full := database + "." + name
	for _, sel := range s.Selectors {
		if ok, _ := path.Match(sel, full); ok {
			return true
		}
		if ok, _ := path.Match(sel, name); ok {
			return true
		}
	}
	return false
}

// Databases returns the set of database names that can be statically
// derived from s's selectors: every selector with a literal (non-glob)
// segment before its first '.' contributes that segment. Selectors that
// glob the database part (e.g. "*.events") contribute nothing here — the
// runner's database-key scope match only ever needs the
// literal cases, since a glob'd database can't be compared against a bare
// "database:<db>" marker key without also knowing the candidate table.
func (s Scope) Databases() map[string]bool {
	dbs := make(map[string]bool)
	for _, sel := range s.Selectors {
		db, rest, ok := strings.Cut(sel, ".")
		if !ok || rest == "" {
			continue
		}
		if strings.ContainsAny(db, "*?[") {
			continue
		}
		dbs[db] = true
	}
	return dbs
}

// String renders the original selector list, comma-joined, for warning and
// error messages.
func (s Scope) String() string {
	return strings.Join(s.Selectors, ",")
}

package schema

import (
	"sort"

	"github.com/pseudomuto/chkit/pkg/sqlutil"
)

// Canonicalize returns the canonical form of defs: every definition
// normalized in place (trimmed identifiers, collapsed whitespace on free-form
// SQL fragments, sorted settings/indexes/projections), then the full set
// sorted by (kind-rank, database, name) and deduplicated on identity with
// last-occurrence-wins.
//
// Canonicalize is idempotent: Canonicalize(Canonicalize(defs)) produces the
// same result as Canonicalize(defs), since the second pass sees input that's
// already normalized, sorted, and dedup'd.
func Canonicalize(defs []Definition) []Definition {
	normalized := make([]Definition, len(defs))
	for i, d := range defs {
		normalized[i] = canonicalizeOne(d)
	}

	sort.SliceStable(normalized, func(i, j int) bool {
		return lessIdentity(normalized[i].Identity(), normalized[j].Identity())
	})

	return dedupLastWins(normalized)
}

func lessIdentity(a, b Identity) bool {
	if ra, rb := a.Kind.kindRank(), b.Kind.kindRank(); ra != rb {
		return ra < rb
	}
	if a.Database != b.Database {
		return a.Database < b.Database
	}
	return a.Name < b.Name
}

// dedupLastWins assumes defs is already sorted by identity and collapses
// runs of equal identity to their last element.
func dedupLastWins(defs []Definition) []Definition {
	out := make([]Definition, 0, len(defs))
	for i, d := range defs {
		if i+1 < len(defs) && defs[i+1].Identity() == d.Identity() {
			continue
		}
		out = append(out, d)
	}
	return out
}

func canonicalizeOne(d Definition) Definition {
	d.Database = sqlutil.CollapseWhitespace(d.Database)
	d.Name = sqlutil.CollapseWhitespace(d.Name)

	switch d.Kind {
	case KindTable:
		if d.Table != nil {
			t := canonicalizeTable(*d.Table)
			d.Table = &t
		}
	case KindView:
		if d.View != nil {
			v := *d.View
			v.As = sqlutil.CollapseWhitespace(v.As)
			d.View = &v
		}
	case KindMaterializedView:
		if d.MaterializedView != nil {
			mv := *d.MaterializedView
			mv.As = sqlutil.CollapseWhitespace(mv.As)
			mv.To.Database = sqlutil.CollapseWhitespace(mv.To.Database)
			mv.To.Name = sqlutil.CollapseWhitespace(mv.To.Name)
			d.MaterializedView = &mv
		}
	}
	return d
}

func canonicalizeTable(t Table) Table {
	t.Engine = sqlutil.CollapseWhitespace(t.Engine)

	if t.PartitionBy != nil {
		v := sqlutil.CollapseWhitespace(*t.PartitionBy)
		t.PartitionBy = &v
	}
	if t.TTL != nil {
		v := sqlutil.CollapseWhitespace(*t.TTL)
		t.TTL = &v
	}

	t.PrimaryKey = collapseAll(t.PrimaryKey)
	t.OrderBy = collapseAll(t.OrderBy)
	t.UniqueKey = collapseAll(t.UniqueKey)

	indexes := make([]Index, len(t.Indexes))
	copy(indexes, t.Indexes)
	for i := range indexes {
		indexes[i].Expression = sqlutil.CollapseWhitespace(indexes[i].Expression)
	}
	sort.SliceStable(indexes, func(i, j int) bool { return indexes[i].Name < indexes[j].Name })
	t.Indexes = indexes

	projections := make([]Projection, len(t.Projections))
	copy(projections, t.Projections)
	for i := range projections {
		projections[i].Query = sqlutil.CollapseWhitespace(projections[i].Query)
	}
	sort.SliceStable(projections, func(i, j int) bool { return projections[i].Name < projections[j].Name })
	t.Projections = projections

	return t
}

func collapseAll(entries []string) []string {
	if entries == nil {
		return nil
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = sqlutil.CollapseWhitespace(e)
	}
	return out
}

// SortedSettingKeys returns t's setting keys in sorted order, the order the
// renderer and drift comparer must use so SETTINGS clauses and comparisons
// are deterministic.
func SortedSettingKeys(t Table) []string {
	keys := make([]string, 0, len(t.Settings))
	for k := range t.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Package drift compares an expected (snapshot) schema against the shape
// actually introspected from a live ClickHouse database, producing a
// DriftReport that the policy engine folds into a schema_drift check.
package drift

import (
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pseudomuto/chkit/pkg/compare"
	"github.com/pseudomuto/chkit/pkg/schema"
	"github.com/pseudomuto/chkit/pkg/sqlutil"
)

type (
	// ObjectDrift is an object-level discrepancy.
	ObjectDrift struct {
		Code         string `json:"code"`
		Object       string `json:"object"`
		ExpectedKind string `json:"expectedKind,omitempty"`
		ActualKind   string `json:"actualKind,omitempty"`
	}

	// TableDrift is a per-table discrepancy report. ReasonCodes is the
	// closed set of dimension names that differed, each paired with a
	// human-readable diff list in Details.
	TableDrift struct {
		Object      string              `json:"object"`
		ReasonCodes []string            `json:"reasonCodes"`
		Details     map[string][]string `json:"details,omitempty"`
	}

	// Report is the Drift Comparer's output.
	Report struct {
		Drifted      bool          `json:"drifted"`
		ObjectDrift  []ObjectDrift `json:"objectDrift"`
		TableDrift   []TableDrift  `json:"tableDrift"`
	}
)

// Object drift codes.
const (
	CodeMissingObject = "missing_object"
	CodeExtraObject   = "extra_object"
	CodeKindMismatch  = "kind_mismatch"
)

// Compare computes the DriftReport for expected (the schema definitions) against
// actual (freshly introspected from the live database). Table-level
// comparisons for objects present on both sides run concurrently via
// errgroup — the one piece of the core with cross-item concurrency, since
// each comparison is independent and read-only.
func Compare(expected, actual []schema.Definition) (*Report, error) {
	expected = schema.Canonicalize(expected)
	actual = schema.Canonicalize(actual)

	expectedByID := schemaByIdentityKey(expected)
	actualByID := schemaByIdentityKey(actual)

	expectedDatabases := make(map[string]bool)
	for _, d := range expected {
		expectedDatabases[d.Database] = true
	}

	report := &Report{}

	expectedKeys := sortedKeys(expectedByID)
	for _, key := range expectedKeys {
		ed := expectedByID[key]
		ad, ok := actualByID[key]
		if !ok {
			report.ObjectDrift = append(report.ObjectDrift, ObjectDrift{
				Code: CodeMissingObject, Object: key, ExpectedKind: string(ed.Kind),
			})
			continue
		}
		if ad.Kind != ed.Kind {
			report.ObjectDrift = append(report.ObjectDrift, ObjectDrift{
				Code: CodeKindMismatch, Object: key, ExpectedKind: string(ed.Kind), ActualKind: string(ad.Kind),
			})
		}
	}

	actualKeys := sortedKeys(actualByID)
	for _, key := range actualKeys {
		ad := actualByID[key]
		if !expectedDatabases[ad.Database] {
			continue // actual items are scoped to databases expected names
		}
		if _, ok := expectedByID[key]; !ok {
			report.ObjectDrift = append(report.ObjectDrift, ObjectDrift{
				Code: CodeExtraObject, Object: key, ActualKind: string(ad.Kind),
			})
		}
	}

	sort.Slice(report.ObjectDrift, func(i, j int) bool { return report.ObjectDrift[i].Object < report.ObjectDrift[j].Object })

	var pairs []schema.Identity
	for _, key := range expectedKeys {
		ed := expectedByID[key]
		ad, ok := actualByID[key]
		if !ok || ad.Kind != schema.KindTable || ed.Kind != schema.KindTable {
			continue
		}
		pairs = append(pairs, ed.Identity())
	}

	tableDrift := make([]TableDrift, len(pairs))
	var g errgroup.Group
	for i, id := range pairs {
		i, id := i, id
		g.Go(func() error {
			ed := expectedByID[id.String()]
			ad := actualByID[id.String()]
			tableDrift[i] = compareTables(id.String(), *ed.Table, *ad.Table)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, td := range tableDrift {
		if len(td.ReasonCodes) > 0 {
			report.TableDrift = append(report.TableDrift, td)
		}
	}
	sort.Slice(report.TableDrift, func(i, j int) bool { return report.TableDrift[i].Object < report.TableDrift[j].Object })

	report.Drifted = len(report.ObjectDrift) > 0 || len(report.TableDrift) > 0
	return report, nil
}

func schemaByIdentityKey(defs []schema.Definition) map[string]schema.Definition {
	m := make(map[string]schema.Definition, len(defs))
	for _, d := range defs {
		m[d.Identity().String()] = d
	}
	return m
}

func sortedKeys(m map[string]schema.Definition) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// compareTables diffs the structural dimensions of for one table.
func compareTables(object string, expected, actual schema.Table) TableDrift {
	td := TableDrift{Object: object, Details: map[string][]string{}}

	if diffs := diffColumnShapes(expected.Columns, actual.Columns); len(diffs) > 0 {
		td.ReasonCodes = append(td.ReasonCodes, "columns")
		td.Details["columns"] = diffs
	}
	if diffs := diffSettingsShape(expected.Settings, actual.Settings); len(diffs) > 0 {
		td.ReasonCodes = append(td.ReasonCodes, "settings")
		td.Details["settings"] = diffs
	}
	if diffs := diffIndexNames(expected.Indexes, actual.Indexes); len(diffs) > 0 {
		td.ReasonCodes = append(td.ReasonCodes, "indexes")
		td.Details["indexes"] = diffs
	}
	if diffs := diffProjectionNames(expected.Projections, actual.Projections); len(diffs) > 0 {
		td.ReasonCodes = append(td.ReasonCodes, "projections")
		td.Details["projections"] = diffs
	}
	if !compare.Values(expected.TTL, actual.TTL) {
		td.ReasonCodes = append(td.ReasonCodes, "ttl")
	}
	if !engineEquivalent(expected.Engine, actual.Engine) {
		td.ReasonCodes = append(td.ReasonCodes, "engine")
	}
	if !keyClauseEqual(expected.PrimaryKey, actual.PrimaryKey) {
		td.ReasonCodes = append(td.ReasonCodes, "primary_key")
	}
	if !keyClauseEqual(expected.OrderBy, actual.OrderBy) {
		td.ReasonCodes = append(td.ReasonCodes, "order_by")
	}
	if !keyClauseEqual(expected.UniqueKey, actual.UniqueKey) {
		td.ReasonCodes = append(td.ReasonCodes, "unique_key")
	}
	if !compare.Values(expected.PartitionBy, actual.PartitionBy) {
		td.ReasonCodes = append(td.ReasonCodes, "partition_by")
	}

	if len(td.Details) == 0 {
		td.Details = nil
	}
	return td
}

func diffColumnShapes(expected, actual []schema.Column) []string {
	expByName := make(map[string]schema.Column, len(expected))
	for _, c := range expected {
		expByName[c.Name] = c
	}
	actByName := make(map[string]schema.Column, len(actual))
	for _, c := range actual {
		actByName[c.Name] = c
	}

	var diffs []string
	for name, ec := range expByName {
		ac, ok := actByName[name]
		if !ok {
			diffs = append(diffs, "missing_column:"+name)
			continue
		}
		if !columnShapeEqual(ec, ac) {
			diffs = append(diffs, "changed_column:"+name)
		}
	}
	for name := range actByName {
		if _, ok := expByName[name]; !ok {
			diffs = append(diffs, "extra_column:"+name)
		}
	}
	sort.Strings(diffs)
	return diffs
}

func columnShapeEqual(a, b schema.Column) bool {
	return a.Type == b.Type &&
		compare.Pointers(a.Nullable, b.Nullable) &&
		defaultEqual(a.Default, b.Default) &&
		compare.Values(a.Comment, b.Comment)
}

// defaultEqual compares two column default values per: "fn:"-prefixed
// strings strip the prefix and whitespace-normalize, quoted and unquoted
// string literals of the same value compare equal, numbers compare by value
// whatever their Go numeric type (int, int64, float64), everything else
// compares by Go equality.
func defaultEqual(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return normalizeDefaultString(as) == normalizeDefaultString(bs)
	}
	num := func(v any) (float64, bool) {
		switch n := v.(type) {
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case float64:
			return n, true
		}
		return 0, false
	}
	if an, ok := num(a); ok {
		if bn, ok := num(b); ok {
			return an == bn
		}
	}
	return a == b
}

func normalizeDefaultString(s string) string {
	if strings.HasPrefix(s, "fn:") {
		return sqlutil.CollapseWhitespace(strings.TrimPrefix(s, "fn:"))
	}
	return unquoteStringLiteral(s)
}

func unquoteStringLiteral(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}

func diffSettingsShape(expected, actual map[string]any) []string {
	var diffs []string
	for k, ev := range expected {
		av, ok := actual[k]
		if !ok {
			diffs = append(diffs, "missing_setting:"+k)
			continue
		}
		if !defaultEqual(ev, av) {
			diffs = append(diffs, "changed_setting:"+k)
		}
	}
	for k := range actual {
		if _, ok := expected[k]; !ok {
			diffs = append(diffs, "extra_setting:"+k)
		}
	}
	sort.Strings(diffs)
	return diffs
}

func diffIndexNames(expected, actual []schema.Index) []string {
	expNames := make(map[string]bool, len(expected))
	for _, i := range expected {
		expNames[i.Name] = true
	}
	actNames := make(map[string]bool, len(actual))
	for _, i := range actual {
		actNames[i.Name] = true
	}
	return setDiff(expNames, actNames, "missing_index:", "extra_index:")
}

func diffProjectionNames(expected, actual []schema.Projection) []string {
	expNames := make(map[string]bool, len(expected))
	for _, p := range expected {
		expNames[p.Name] = true
	}
	actNames := make(map[string]bool, len(actual))
	for _, p := range actual {
		actNames[p.Name] = true
	}
	return setDiff(expNames, actNames, "missing_projection:", "extra_projection:")
}

func setDiff(expected, actual map[string]bool, missingPrefix, extraPrefix string) []string {
	var diffs []string
	for name := range expected {
		if !actual[name] {
			diffs = append(diffs, missingPrefix+name)
		}
	}
	for name := range actual {
		if !expected[name] {
			diffs = append(diffs, extraPrefix+name)
		}
	}
	sort.Strings(diffs)
	return diffs
}

// engineEquivalent treats SharedMergeTree and MergeTree engine families as
// equivalent: strip a "Shared" prefix and append "()" if the
// remainder has no parameter list, then compare.
func engineEquivalent(a, b string) bool {
	return normalizeEngine(a) == normalizeEngine(b)
}

func normalizeEngine(engine string) string {
	e := strings.TrimPrefix(engine, "Shared")
	if !strings.Contains(e, "(") {
		e += "()"
	}
	return e
}

// keyClauseEqual compares two key clauses after flattening compound
// entries, stripping backticks, stripping one outer paren layer, and
// whitespace-normalizing each element.
func keyClauseEqual(a, b []string) bool {
	fa := normalizeKeyClause(a)
	fb := normalizeKeyClause(b)
	if len(fa) != len(fb) {
		return false
	}
	for i := range fa {
		if fa[i] != fb[i] {
			return false
		}
	}
	return true
}

func normalizeKeyClause(entries []string) []string {
	flat := sqlutil.SplitKeyClause(entries)
	out := make([]string, len(flat))
	for i, e := range flat {
		out[i] = normalizeKeyElement(e)
	}
	return out
}

func normalizeKeyElement(e string) string {
	e = strings.ReplaceAll(e, "`", "")
	e = strings.TrimSpace(e)
	if len(e) >= 2 && e[0] == '(' && e[len(e)-1] == ')' {
		e = e[1 : len(e)-1]
	}
	return sqlutil.CollapseWhitespace(e)
}

package sqlutil

// SplitTopLevel splits s on commas that sit outside of any nested
// parentheses and outside of single-quoted, double-quoted, or
// backtick-quoted spans. It does not split inside quotes or parens even
// when they're unbalanced relative to each other (e.g. a quote containing a
// literal paren character).
//
// For example "a, b, (c, d)" splits into "a", "b" and "(c, d)": the tuple
// stays one element, where naive strings.Split on "," would cut it into
// "(c" and "d)". This is the paren- and quote-aware splitter that
// both the key-clause renderer and the drift comparer rely on.
func SplitTopLevel(s string) []string {
	var parts []string
	var cur []rune
	depth := 0
	var quote rune // 0 when not inside a quoted span

	flush := func() {
		parts = append(parts, string(cur))
		cur = cur[:0]
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if quote != 0 {
			cur = append(cur, r)
			if r == quote {
				quote = 0
			}
			continue
		}

		switch r {
		case '\'', '"', '`':
			quote = r
			cur = append(cur, r)
		case '(':
			depth++
			cur = append(cur, r)
		case ')':
			if depth > 0 {
				depth--
			}
			cur = append(cur, r)
		case ',':
			if depth == 0 {
				flush()
				continue
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := trimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// SplitKeyClause splits an ordered list of key-clause entries (each of
// which may itself be a comma-delimited compound form, per) into a flat
// list of individual column expressions.
func SplitKeyClause(entries []string) []string {
	var flat []string
	for _, entry := range entries {
		flat = append(flat, SplitTopLevel(entry)...)
	}
	return flat
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(rune(s[start])) {
		start++
	}
	for end > start && isSpace(rune(s[end-1])) {
		end--
	}
	return s[start:end]
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// CollapseWhitespace collapses every run of whitespace in s to a single
// space and trims the result, per the canonicalizer's normalization rule
// for partitionBy/ttl/index-expression/projection-query fields.
func CollapseWhitespace(s string) string {
	var b []rune
	inSpace := false
	for _, r := range s {
		if isSpace(r) {
			if !inSpace && len(b) > 0 {
				b = append(b, ' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b = append(b, r)
	}
	return trimSpace(string(b))
}

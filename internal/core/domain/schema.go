package domain

import (
	"regexp"
	"strings"
)

// SchemaMapping maps a lowercase table or view name to its lowercase column
// names. The first entry is always the "*" sentinel, which is a valid
// projection for any known table. A mapping is built once per schema input
// and must be treated as read-only afterwards; sharing one mapping across
// concurrent validations is safe.
type SchemaMapping map[string][]string

// HasTable reports whether name (matched case-insensitively) is a known
// table or view.
func (m SchemaMapping) HasTable(name string) bool {
	_, ok := m[strings.ToLower(name)]
	return ok
}

// Columns returns the column list for name, or nil when the table is unknown.
func (m SchemaMapping) Columns(name string) []string {
	return m[strings.ToLower(name)]
}

var (
	createHeaderRe = regexp.MustCompile("(?is)^\\s*CREATE\\s+(?:OR\\s+REPLACE\\s+)?(?:TABLE|VIEW)\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?([`\"\\[\\w.]+)(?:\\s+AS\\b)?")
	viewSelectRe   = regexp.MustCompile(`(?is)\bAS\b\s*\(\s*SELECT\s+(.*?)(?:\bFROM\b|\);?|$)`)
	columnAliasRe  = regexp.MustCompile("(?i)\\bAS\\b\\s+([`\"\\[\\w]+)")
	tableBodyRe    = regexp.MustCompile(`(?s)\(\s*(.*?)\s*\)[^)]*$`)
	constraintRe   = regexp.MustCompile(`(?i)^\s*(?:CONSTRAINT|PRIMARY\s+KEY|FOREIGN\s+KEY|UNIQUE|CHECK|INDEX)`)
	identRe        = regexp.MustCompile("^\\s*([`\"\\[\\w]+)")
	viewColSplitRe = regexp.MustCompile(`,\s*`)

	quoteStripper = strings.NewReplacer("`", "", `"`, "", "[", "", "]", "")
)

// ExtractSchema parses a batch of semicolon-separated DDL statements into a
// SchemaMapping. Extraction is best-effort: statements that do not match a
// CREATE [OR REPLACE] (TABLE|VIEW) [IF NOT EXISTS] header are ignored, and a
// table whose body yields no columns beyond the "*" sentinel produces no
// entry at all. Re-declaring a table overwrites its previous column list.
func ExtractSchema(ddl string) SchemaMapping {
	mapping := make(SchemaMapping)

	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		header := createHeaderRe.FindStringSubmatch(stmt)
		if header == nil {
			continue
		}

		name := header[1]
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		name = strings.ToLower(quoteStripper.Replace(name))

		columns := []string{"*"}
		if view := viewSelectRe.FindStringSubmatch(stmt); view != nil {
			columns = appendViewColumns(columns, view[1])
		} else if body := tableBodyRe.FindStringSubmatch(stmt); body != nil {
			columns = appendTableColumns(columns, body[1])
		}

		// Unparseable bodies yield no entry; conformance checks then report
		// the table as undefined, which is the conservative fallback.
		if len(columns) > 1 {
			mapping[name] = columns
		}
	}

	return mapping
}

// appendViewColumns derives output column names from the select list of a
// CREATE VIEW ... AS (SELECT ...) statement. An explicit AS alias wins;
// otherwise the last dot-qualified segment is taken with any surrounding
// function call stripped.
func appendViewColumns(columns []string, selectList string) []string {
	for _, col := range viewColSplitRe.Split(strings.TrimSpace(selectList), -1) {
		col = strings.TrimSpace(col)

		var name string
		if alias := columnAliasRe.FindStringSubmatch(col); alias != nil {
			name = alias[1]
		} else {
			name = col
			if i := strings.LastIndex(name, "."); i >= 0 {
				name = strings.TrimSpace(name[i+1:])
			}
			name = stripFuncWrapper(name)
		}

		name = strings.ToLower(quoteStripper.Replace(name))
		if name != "" && name != "*" && !containsString(columns, name) {
			columns = append(columns, name)
		}
	}
	return columns
}

// appendTableColumns derives column names from a CREATE TABLE body, splitting
// on commas at paren depth 0 so type parameters like DECIMAL(10,2) stay
// intact. Constraint fragments are skipped.
func appendTableColumns(columns []string, body string) []string {
	for _, def := range splitTopLevel(body) {
		if constraintRe.MatchString(def) {
			continue
		}
		ident := identRe.FindStringSubmatch(def)
		if ident == nil {
			continue
		}
		name := strings.ToLower(quoteStripper.Replace(ident[1]))
		if !containsString(columns, name) {
			columns = append(columns, name)
		}
	}
	return columns
}

// splitTopLevel splits s on commas outside any parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	var cur strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		}
		if ch == ',' && depth == 0 {
			parts = append(parts, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteRune(ch)
	}
	if last := strings.TrimSpace(cur.String()); last != "" {
		parts = append(parts, last)
	}
	return parts
}

// stripFuncWrapper unwraps COALESCE(x) style expressions: text before the
// last "(" and after the following ")" is discarded.
func stripFuncWrapper(s string) string {
	if i := strings.LastIndex(s, "("); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ")"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

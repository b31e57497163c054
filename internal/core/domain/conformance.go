package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// QueryFacts holds the structural facts a QueryAnalyzer extracts from a
// single SELECT/CTE query. All values are derived fresh per query.
type QueryFacts struct {
	// Tables are the referenced table names with dot-qualification resolved
	// to the rightmost segment. Declared CTE names are excluded.
	Tables []string
	// Aliases maps table alias -> table name.
	Aliases map[string]string
	// CTEs are the names declared in a WITH clause, empty when there is none.
	CTEs []string
	// Columns are the raw projected-column expressions in query order. They
	// may include qualified names like "t.col", function calls, "*", and
	// literals. Unsupported expressions render empty.
	Columns []string
}

// ConformanceChecker validates analyzer facts against a SchemaMapping:
// aliases and CTEs are resolved, projected columns normalized, and every
// table/column reference checked for existence. A checker is immutable and
// safe for concurrent use.
type ConformanceChecker struct {
	aggCall *regexp.Regexp
	zeroArg *regexp.Regexp
}

// NewConformanceChecker compiles the column-normalization patterns.
func NewConformanceChecker() *ConformanceChecker {
	return &ConformanceChecker{
		aggCall: regexp.MustCompile(`(?i)^(COUNT|SUM|AVG|MIN|MAX)\s*\(\s*(\*|DISTINCT\s+\w+|\w+)\s*\)`),
		zeroArg: regexp.MustCompile(`^\w+\(\s*\)$`),
	}
}

// Check validates facts against schema. It returns ok=true with no issues on
// success; otherwise ok=false and the issues describing the failure. Table
// errors take precedence: when an undefined table is referenced, column
// validation is skipped entirely.
func (c *ConformanceChecker) Check(facts *QueryFacts, schema SchemaMapping) (bool, []string) {
	tables := lowerDedupe(facts.Tables)
	ctesPresent := len(facts.CTEs) > 0

	if len(tables) == 0 && !ctesPresent {
		return c.checkTableFreeQuery(facts.Columns)
	}

	prefixes := c.knownPrefixes(facts.Aliases, schema)
	cleaned := c.cleanColumns(facts.Columns, ctesPresent, prefixes)

	valid := map[string]bool{"*": true}
	var unknown []string
	for _, table := range tables {
		cols, ok := schema[table]
		if !ok {
			unknown = append(unknown, table)
			continue
		}
		for _, col := range cols {
			valid[strings.ToLower(col)] = true
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return false, []string{fmt.Sprintf("Query references undefined tables: [%s]", strings.Join(unknown, ", "))}
	}

	var invalid []string
	seen := make(map[string]bool)
	for _, col := range cleaned {
		if col == "*" || valid[col] || seen[col] {
			continue
		}
		seen[col] = true
		invalid = append(invalid, col)
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		sort.Strings(tables)
		return false, []string{fmt.Sprintf(
			"Columns [%s] are not defined for the referenced tables [%s]",
			strings.Join(invalid, ", "), strings.Join(tables, ", "))}
	}

	return true, nil
}

// checkTableFreeQuery accepts a query with no tables and no CTEs only when
// every projection is a numeric literal, "*", an aggregate call, or a
// zero-argument function call.
func (c *ConformanceChecker) checkTableFreeQuery(columns []string) (bool, []string) {
	for _, col := range columns {
		if isDigits(col) || col == "*" || c.aggCall.MatchString(col) || c.zeroArg.MatchString(col) {
			continue
		}
		return false, []string{"Columns specified without a valid table or CTE reference."}
	}
	return true, nil
}

// knownPrefixes returns the lowercase set of valid column qualifiers: schema
// table names plus aliases that resolve to a schema table. An alias pointing
// at an unknown table is dropped, not reported; it surfaces later only if
// actually used.
func (c *ConformanceChecker) knownPrefixes(aliases map[string]string, schema SchemaMapping) map[string]bool {
	prefixes := make(map[string]bool, len(schema)+len(aliases))
	for table := range schema {
		prefixes[table] = true
	}
	for alias, table := range aliases {
		if _, ok := schema[strings.ToLower(table)]; ok {
			prefixes[strings.ToLower(alias)] = true
		}
	}
	return prefixes
}

// cleanColumns normalizes raw projections into the set of column names to
// validate. Aggregate calls are skipped. With CTEs present, only columns
// qualified by a known prefix are checked; unprefixed columns are assumed
// to come from a CTE and are not validated. Without CTEs, a dot qualifier is
// ignored and the trailing segment validated; "*" is never validated.
func (c *ConformanceChecker) cleanColumns(raw []string, ctesPresent bool, prefixes map[string]bool) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, col := range raw {
		col = strings.TrimSpace(col)
		if col == "" || c.aggCall.MatchString(col) {
			continue
		}

		if ctesPresent {
			i := strings.Index(col, ".")
			if i < 0 {
				continue
			}
			if prefixes[strings.ToLower(col[:i])] {
				add(strings.ToLower(col[i+1:]))
			}
			continue
		}

		if i := strings.LastIndex(col, "."); i >= 0 {
			add(strings.ToLower(col[i+1:]))
		} else if col != "*" {
			add(strings.ToLower(col))
		}
	}
	return out
}

func lowerDedupe(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		s = strings.ToLower(s)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

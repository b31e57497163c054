package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// keywordRule pairs a disallowed keyword with its whole-word pattern.
type keywordRule struct {
	keyword string
	re      *regexp.Regexp
}

// SafetyInspector performs a rule-based lexical scan of a single query for
// disallowed or unsafe constructs, independent of any schema. The rules run
// in a fixed order and the issue texts are stable; callers rely on both.
// An inspector is immutable after construction and safe for concurrent use.
type SafetyInspector struct {
	selectStart *regexp.Regexp
	cteStart    *regexp.Regexp

	disallowed []keywordRule

	unsafePatterns   []*regexp.Regexp
	semicolonComment *regexp.Regexp

	limitOffset *regexp.Regexp
	orderBy     *regexp.Regexp

	join      *regexp.Regexp
	anyJoin   *regexp.Regexp
	onUsing   *regexp.Regexp
	crossJoin *regexp.Regexp

	union *regexp.Regexp
}

// NewSafetyInspector compiles the fixed rule set.
func NewSafetyInspector() *SafetyInspector {
	keywords := []string{"DROP", "DELETE", "TRUNCATE", "UPDATE", "INSERT", "ALTER", "CREATE", "GRANT", "REVOKE"}
	disallowed := make([]keywordRule, 0, len(keywords))
	for _, kw := range keywords {
		disallowed = append(disallowed, keywordRule{
			keyword: kw,
			re:      regexp.MustCompile(`(?i)\b` + kw + `\b`),
		})
	}

	semicolonComment := regexp.MustCompile(`(?i);\s*--`)

	return &SafetyInspector{
		selectStart: regexp.MustCompile(`(?is)^\s*SELECT`),
		cteStart:    regexp.MustCompile(`(?is)^\s*WITH\s+.*?\s+AS\s*\(.*?\)\s*SELECT`),
		disallowed:  disallowed,
		unsafePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)xp_cmdshell`),
			regexp.MustCompile(`(?i)exec(\s|\()`),
			regexp.MustCompile(`(?i)sp_`),
			regexp.MustCompile(`(?i)xp_`),
			semicolonComment,
		},
		semicolonComment: semicolonComment,
		limitOffset:      regexp.MustCompile(`(?i)\b(LIMIT|OFFSET)\b`),
		orderBy:          regexp.MustCompile(`(?i)\bORDER\s+BY\b`),
		join:             regexp.MustCompile(`(?i)\bJOIN\s+[\w.]+`),
		anyJoin:          regexp.MustCompile(`(?i)\bJOIN\b`),
		onUsing:          regexp.MustCompile(`(?i)\b(ON|USING)\b`),
		crossJoin:        regexp.MustCompile(`(?i)\bCROSS\s+JOIN\b`),
		union:            regexp.MustCompile(`(?i)\bUNION\b`),
	}
}

// Inspect runs every rule against query and returns the triggered issues in
// rule order. An empty result means the query is considered safe verbatim.
func (in *SafetyInspector) Inspect(query string) []string {
	var issues []string

	if !in.selectStart.MatchString(query) && !in.cteStart.MatchString(query) {
		issues = append(issues, "Only SELECT statements or CTEs (WITH...SELECT) are allowed.")
	}

	for _, rule := range in.disallowed {
		if rule.re.MatchString(query) {
			issues = append(issues, fmt.Sprintf("Potential disallowed operation detected: '%s'.", rule.keyword))
		}
	}

	semicolonCommentFired := false
	for _, re := range in.unsafePatterns {
		match := re.FindString(query)
		if match == "" {
			continue
		}
		if re == in.semicolonComment {
			semicolonCommentFired = true
		}
		issues = append(issues, fmt.Sprintf("Potentially unsafe SQL pattern '%s' detected.", strings.TrimSpace(match)))
	}

	if in.limitOffset.MatchString(query) && !in.orderBy.MatchString(query) {
		issues = append(issues, "Use of LIMIT/OFFSET without ORDER BY may result in unpredictable results.")
	}

	// Suppressed only when the exact ";--" pattern already fired; other
	// unsafe-semicolon shapes still double-report.
	if hasInteriorSemicolon(query) && !semicolonCommentFired {
		issues = append(issues, "Avoid the use of semicolons (;) except possibly at the very end of the query.")
	}

	if issue, ok := in.checkCartesianJoin(query); ok {
		issues = append(issues, issue)
	}

	if in.union.MatchString(query) {
		issues = append(issues, "UNION queries detected. Ensure column counts and types match in each SELECT.")
	}

	return issues
}

// hasInteriorSemicolon reports whether query contains a semicolon that is not
// the final non-whitespace character, ignoring a single trailing -- comment.
func hasInteriorSemicolon(query string) bool {
	trimmed := strings.TrimSpace(query)
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != ';' {
			continue
		}
		rest := strings.TrimSpace(trimmed[i+1:])
		if rest == "" {
			continue
		}
		if strings.HasPrefix(rest, "--") && !strings.ContainsRune(rest, '\n') {
			continue
		}
		return true
	}
	return false
}

// checkCartesianJoin flags the first JOIN that has no ON/USING clause before
// the next JOIN (or end of query). CROSS JOIN anywhere disables the check.
func (in *SafetyInspector) checkCartesianJoin(query string) (string, bool) {
	loc := in.join.FindStringIndex(query)
	if loc == nil || in.crossJoin.MatchString(query) {
		return "", false
	}

	area := query[loc[1]:]
	if next := in.anyJoin.FindStringIndex(area); next != nil {
		area = area[:next[0]]
	}
	if in.onUsing.MatchString(area) {
		return "", false
	}
	return "Use of JOIN without an ON/USING clause may result in a Cartesian product. Specify join conditions or use CROSS JOIN.", true
}

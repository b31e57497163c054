package domain

import (
	"errors"
	"strings"
)

// ErrParseFailed marks structural-analyzer errors caused by unparseable SQL.
// Analyzer implementations wrap it so the pipeline can report parse failures
// separately from schema-conformance failures.
var ErrParseFailed = errors.New("failed to parse SQL")

// RejectionCategory classifies why a query was rejected.
type RejectionCategory string

const (
	// CategorySafety: one or more safety inspector rules matched.
	CategorySafety RejectionCategory = "safety"
	// CategorySchema: the query references undefined tables or columns.
	CategorySchema RejectionCategory = "schema"
	// CategoryParse: the structural analyzer could not parse the query.
	CategoryParse RejectionCategory = "parse"
	// CategoryUnexpected: any other analysis-stage failure.
	CategoryUnexpected RejectionCategory = "unexpected"
)

// Verdict is the terminal outcome of validating one query. Safety and
// conformance issues are mutually exclusive: safety is checked first and
// short-circuits the pipeline.
type Verdict struct {
	Query    string
	Accepted bool
	Category RejectionCategory
	Issues   []string
}

// Accept returns the accepted verdict for query.
func Accept(query string) Verdict {
	return Verdict{Query: query, Accepted: true}
}

// Reject returns a rejected verdict with the given category and issues.
func Reject(query string, category RejectionCategory, issues []string) Verdict {
	return Verdict{Query: query, Category: category, Issues: issues}
}

// String renders the verdict in the external output format: an accepted
// query is returned unchanged; safety rejections produce the multi-line
// issue block; all other rejections produce a "Validation Error: " line.
func (v Verdict) String() string {
	if v.Accepted {
		return v.Query
	}
	if v.Category == CategorySafety {
		var b strings.Builder
		b.WriteString("Detected issues while validating SQL query:")
		for _, issue := range v.Issues {
			b.WriteString("\n- ")
			b.WriteString(issue)
		}
		return b.String()
	}
	return "Validation Error: " + strings.Join(v.Issues, ", ")
}

package port

import "github.com/sqlverdict/sqlverdict/internal/core/domain"

// QueryAnalyzer extracts structural facts (tables, aliases, CTE names,
// projected columns) from a single SELECT/CTE query. Implementations wrap
// unparseable input with domain.ErrParseFailed so the pipeline can surface
// "malformed SQL" separately from "well-formed but schema-invalid SQL".
type QueryAnalyzer interface {
	Analyze(sql string) (*domain.QueryFacts, error)
}

package pgparse

import (
	"fmt"
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/sqlverdict/sqlverdict/internal/core/domain"
)

// Analyzer extracts structural facts from a query using the PostgreSQL
// parser. It holds no state and is safe for concurrent use.
type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze parses sql and collects the referenced tables, table aliases, CTE
// names and the rendered top-level select-list expressions. Parse failures
// wrap domain.ErrParseFailed.
func (a *Analyzer) Analyze(sql string) (*domain.QueryFacts, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailed, err)
	}

	c := &collector{
		aliases: make(map[string]string),
		seen:    make(map[string]bool),
		cteSet:  make(map[string]bool),
	}

	for _, raw := range tree.Stmts {
		if raw.Stmt == nil {
			continue
		}
		if sel, ok := raw.Stmt.Node.(*pg_query.Node_SelectStmt); ok {
			c.walkSelect(sel.SelectStmt, true)
		}
	}

	return &domain.QueryFacts{
		Tables:  c.tables,
		Aliases: c.aliases,
		CTEs:    c.ctes,
		Columns: c.columns,
	}, nil
}

type collector struct {
	tables  []string
	seen    map[string]bool
	aliases map[string]string
	ctes    []string
	cteSet  map[string]bool
	columns []string
}

// walkSelect descends a SelectStmt. Only the outermost statement's target
// list contributes rendered columns; nested selects contribute tables and
// aliases only.
func (c *collector) walkSelect(sel *pg_query.SelectStmt, top bool) {
	if sel == nil {
		return
	}

	if sel.WithClause != nil {
		for _, cte := range sel.WithClause.Ctes {
			node, ok := cte.Node.(*pg_query.Node_CommonTableExpr)
			if !ok || node.CommonTableExpr == nil {
				continue
			}
			name := strings.ToLower(node.CommonTableExpr.Ctename)
			if name != "" && !c.cteSet[name] {
				c.cteSet[name] = true
				c.ctes = append(c.ctes, name)
			}
			if sub, ok := node.CommonTableExpr.Ctequery.GetNode().(*pg_query.Node_SelectStmt); ok {
				c.walkSelect(sub.SelectStmt, false)
			}
		}
	}

	// Set operations (UNION, INTERSECT, EXCEPT) carry their branches in
	// Larg/Rarg with an empty target list on the parent.
	if sel.Larg != nil || sel.Rarg != nil {
		c.walkSelect(sel.Larg, top)
		c.walkSelect(sel.Rarg, false)
		return
	}

	for _, from := range sel.FromClause {
		c.walkFrom(from)
	}

	if !top {
		return
	}
	for _, target := range sel.TargetList {
		rt, ok := target.Node.(*pg_query.Node_ResTarget)
		if !ok || rt.ResTarget == nil || rt.ResTarget.Val == nil {
			continue
		}
		c.columns = append(c.columns, renderExpr(rt.ResTarget.Val))
	}
}

func (c *collector) walkFrom(node *pg_query.Node) {
	if node == nil {
		return
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_RangeVar:
		rv := n.RangeVar
		if rv == nil || rv.Relname == "" {
			return
		}
		// A FROM item naming a CTE is not a base table reference.
		if c.cteSet[strings.ToLower(rv.Relname)] && rv.Schemaname == "" {
			if rv.Alias != nil && rv.Alias.Aliasname != "" {
				c.aliases[strings.ToLower(rv.Alias.Aliasname)] = strings.ToLower(rv.Relname)
			}
			return
		}
		// Schema qualification is dropped: table identity is the bare
		// relation name, matching the keys the DDL extractor produces.
		c.addTable(rv.Relname)
		if rv.Alias != nil && rv.Alias.Aliasname != "" {
			c.aliases[strings.ToLower(rv.Alias.Aliasname)] = strings.ToLower(rv.Relname)
		}
	case *pg_query.Node_JoinExpr:
		if n.JoinExpr != nil {
			c.walkFrom(n.JoinExpr.Larg)
			c.walkFrom(n.JoinExpr.Rarg)
		}
	case *pg_query.Node_RangeSubselect:
		if n.RangeSubselect == nil {
			return
		}
		if sub, ok := n.RangeSubselect.Subquery.GetNode().(*pg_query.Node_SelectStmt); ok {
			c.walkSelect(sub.SelectStmt, false)
		}
	}
}

func (c *collector) addTable(name string) {
	key := strings.ToLower(name)
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.tables = append(c.tables, name)
}

// renderExpr produces a compact textual form of a select-list expression.
// Unsupported node kinds render as an empty string; the conformance checker
// skips those.
func renderExpr(node *pg_query.Node) string {
	if node == nil {
		return ""
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_ColumnRef:
		return renderColumnRef(n.ColumnRef)
	case *pg_query.Node_AConst:
		return renderConst(n.AConst)
	case *pg_query.Node_FuncCall:
		return renderFuncCall(n.FuncCall)
	case *pg_query.Node_TypeCast:
		if n.TypeCast != nil {
			return renderExpr(n.TypeCast.Arg)
		}
	}
	return ""
}

func renderColumnRef(cr *pg_query.ColumnRef) string {
	if cr == nil {
		return ""
	}
	parts := make([]string, 0, len(cr.Fields))
	for _, field := range cr.Fields {
		switch f := field.Node.(type) {
		case *pg_query.Node_String_:
			if f.String_ != nil {
				parts = append(parts, f.String_.Sval)
			}
		case *pg_query.Node_AStar:
			parts = append(parts, "*")
		}
	}
	return strings.Join(parts, ".")
}

func renderConst(ac *pg_query.A_Const) string {
	if ac == nil || ac.Isnull {
		return "NULL"
	}
	switch {
	case ac.GetIval() != nil:
		return strconv.FormatInt(int64(ac.GetIval().Ival), 10)
	case ac.GetFval() != nil:
		return ac.GetFval().Fval
	case ac.GetSval() != nil:
		return "'" + ac.GetSval().Sval + "'"
	}
	return ""
}

func renderFuncCall(fc *pg_query.FuncCall) string {
	if fc == nil || len(fc.Funcname) == 0 {
		return ""
	}
	last, ok := fc.Funcname[len(fc.Funcname)-1].Node.(*pg_query.Node_String_)
	if !ok || last.String_ == nil {
		return ""
	}
	name := last.String_.Sval

	if fc.AggStar {
		return name + "(*)"
	}

	args := make([]string, 0, len(fc.Args))
	for _, arg := range fc.Args {
		args = append(args, renderExpr(arg))
	}
	inner := strings.Join(args, ", ")
	if fc.AggDistinct {
		inner = "DISTINCT " + inner
	}
	return name + "(" + inner + ")"
}

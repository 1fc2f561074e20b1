// Package checklang evaluates the closed "Level A" CHECK sub-language
// (spec §4.H): comparisons, IN, BETWEEN, IS [NOT] NULL, and AND
// conjunction. Everything outside that grammar — OR, sub-selects,
// arbitrary function calls — is reported NotEvaluated rather than guessed
// at, and the caller (the Resolver) honors it per constraint_policy.
//
// CHECK expression text has no statement around it, so it is parsed by
// wrapping it as a SELECT target (`SELECT <expr>`) and pulling the single
// target's value node back out — the same pg_query_go v6 typed-node API
// `pkg/pg_lineage/rewrite_pks.go` walks for full statements, just entered
// one level deeper.
package checklang

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Outcome is the three-way result of evaluating a node against a row.
type Outcome int

const (
	// Satisfied means the expression evaluated and held true.
	Satisfied Outcome = iota
	// Violated means the expression evaluated and held false.
	Violated
	// NotEvaluated means some part of the expression falls outside Level A.
	NotEvaluated
)

func (o Outcome) String() string {
	switch o {
	case Satisfied:
		return "satisfied"
	case Violated:
		return "violated"
	default:
		return "not_evaluated"
	}
}

// Row is the candidate values a CHECK is evaluated against, keyed by
// unqualified column name.
type Row map[string]any

// Evaluate parses exprSQL (a CHECK constraint's source text) and evaluates
// it against row. now substitutes every current_date/current_timestamp
// reference, per spec §9's deterministic base-date resolution.
func Evaluate(exprSQL string, row Row, now time.Time) (Outcome, error) {
	node, err := parseExpr(exprSQL)
	if err != nil {
		return NotEvaluated, err
	}
	return evalNode(node, row, now), nil
}

func parseExpr(exprSQL string) (*pg_query.Node, error) {
	tree, err := pg_query.Parse("SELECT " + exprSQL)
	if err != nil {
		return nil, fmt.Errorf("checklang: parse %q: %w", exprSQL, err)
	}
	stmts := tree.GetStmts()
	if len(stmts) == 0 {
		return nil, fmt.Errorf("checklang: %q produced no statement", exprSQL)
	}
	sel := stmts[0].GetStmt().GetSelectStmt()
	if sel == nil || len(sel.GetTargetList()) == 0 {
		return nil, fmt.Errorf("checklang: %q is not a single expression", exprSQL)
	}
	val := sel.GetTargetList()[0].GetResTarget().GetVal()
	if val == nil {
		return nil, fmt.Errorf("checklang: %q has no expression value", exprSQL)
	}
	return val, nil
}

func evalNode(n *pg_query.Node, row Row, now time.Time) Outcome {
	switch {
	case n == nil:
		return NotEvaluated
	case n.GetBoolExpr() != nil:
		return evalBoolExpr(n.GetBoolExpr(), row, now)
	case n.GetAExpr() != nil:
		return evalAExpr(n.GetAExpr(), row, now)
	case n.GetNullTest() != nil:
		return evalNullTest(n.GetNullTest(), row)
	default:
		return NotEvaluated
	}
}

func evalBoolExpr(be *pg_query.BoolExpr, row Row, now time.Time) Outcome {
	if be.GetBoolop() != pg_query.BoolExprType_AND_EXPR {
		return NotEvaluated
	}
	for _, arg := range be.GetArgs() {
		switch evalNode(arg, row, now) {
		case Violated:
			return Violated
		case NotEvaluated:
			return NotEvaluated
		}
	}
	return Satisfied
}

func evalAExpr(ae *pg_query.A_Expr, row Row, now time.Time) Outcome {
	switch ae.GetKind() {
	case pg_query.A_Expr_Kind_AEXPR_OP:
		return evalComparison(ae, row, now)
	case pg_query.A_Expr_Kind_AEXPR_IN:
		return evalIn(ae, row, now)
	case pg_query.A_Expr_Kind_AEXPR_BETWEEN, pg_query.A_Expr_Kind_AEXPR_NOT_BETWEEN:
		return evalBetween(ae, row, now)
	default:
		return NotEvaluated
	}
}

func operatorName(names []*pg_query.Node) (string, bool) {
	if len(names) != 1 {
		return "", false
	}
	s := names[0].GetString_()
	if s == nil {
		return "", false
	}
	return s.GetSval(), true
}

func evalComparison(ae *pg_query.A_Expr, row Row, now time.Time) Outcome {
	op, ok := operatorName(ae.GetName())
	if !ok {
		return NotEvaluated
	}
	lv, ok := evalScalar(ae.GetLexpr(), row, now)
	if !ok {
		return NotEvaluated
	}
	rv, ok := evalScalar(ae.GetRexpr(), row, now)
	if !ok {
		return NotEvaluated
	}
	cmp, ok := compare(lv, rv)
	if !ok {
		return NotEvaluated
	}
	var held bool
	switch op {
	case "<":
		held = cmp < 0
	case "<=":
		held = cmp <= 0
	case ">":
		held = cmp > 0
	case ">=":
		held = cmp >= 0
	case "=":
		held = cmp == 0
	case "<>", "!=":
		held = cmp != 0
	default:
		return NotEvaluated
	}
	if held {
		return Satisfied
	}
	return Violated
}

func evalIn(ae *pg_query.A_Expr, row Row, now time.Time) Outcome {
	lv, ok := evalScalar(ae.GetLexpr(), row, now)
	if !ok {
		return NotEvaluated
	}
	list := ae.GetRexpr().GetList()
	if list == nil {
		return NotEvaluated
	}
	for _, item := range list.GetItems() {
		v, ok := evalScalar(item, row, now)
		if !ok {
			return NotEvaluated
		}
		if cmp, ok := compare(lv, v); ok && cmp == 0 {
			return Satisfied
		}
	}
	return Violated
}

func evalBetween(ae *pg_query.A_Expr, row Row, now time.Time) Outcome {
	lv, ok := evalScalar(ae.GetLexpr(), row, now)
	if !ok {
		return NotEvaluated
	}
	list := ae.GetRexpr().GetList()
	if list == nil || len(list.GetItems()) != 2 {
		return NotEvaluated
	}
	lo, ok := evalScalar(list.GetItems()[0], row, now)
	if !ok {
		return NotEvaluated
	}
	hi, ok := evalScalar(list.GetItems()[1], row, now)
	if !ok {
		return NotEvaluated
	}
	loCmp, ok1 := compare(lv, lo)
	hiCmp, ok2 := compare(lv, hi)
	if !ok1 || !ok2 {
		return NotEvaluated
	}
	between := loCmp >= 0 && hiCmp <= 0
	if ae.GetKind() == pg_query.A_Expr_Kind_AEXPR_NOT_BETWEEN {
		between = !between
	}
	if between {
		return Satisfied
	}
	return Violated
}

func evalNullTest(nt *pg_query.NullTest, row Row) Outcome {
	colref := nt.GetArg().GetColumnRef()
	if colref == nil {
		return NotEvaluated
	}
	name, ok := columnName(colref)
	if !ok {
		return NotEvaluated
	}
	v, present := row[name]
	isNull := !present || v == nil
	var held bool
	switch nt.GetNulltesttype() {
	case pg_query.NullTestType_IS_NULL:
		held = isNull
	case pg_query.NullTestType_IS_NOT_NULL:
		held = !isNull
	default:
		return NotEvaluated
	}
	if held {
		return Satisfied
	}
	return Violated
}

func columnName(colref *pg_query.ColumnRef) (string, bool) {
	fields := colref.GetFields()
	if len(fields) == 0 {
		return "", false
	}
	last := fields[len(fields)-1].GetString_()
	if last == nil {
		return "", false
	}
	return last.GetSval(), true
}

// evalScalar resolves a leaf node (column reference, literal constant, or
// current_date/current_timestamp) to a comparable Go value.
func evalScalar(n *pg_query.Node, row Row, now time.Time) (any, bool) {
	switch {
	case n == nil:
		return nil, false
	case n.GetColumnRef() != nil:
		name, ok := columnName(n.GetColumnRef())
		if !ok {
			return nil, false
		}
		v, present := row[name]
		if !present {
			return nil, false
		}
		return v, true
	case n.GetAConst() != nil:
		return constValue(n.GetAConst())
	case n.GetSqlvalueFunction() != nil:
		switch n.GetSqlvalueFunction().GetOp() {
		case pg_query.SQLValueFunctionOp_SVFOP_CURRENT_DATE:
			return now.Format("2006-01-02"), true
		case pg_query.SQLValueFunctionOp_SVFOP_CURRENT_TIMESTAMP:
			return now.Format(time.RFC3339), true
		default:
			return nil, false
		}
	default:
		return nil, false
	}
}

func constValue(c *pg_query.A_Const) (any, bool) {
	if c.GetIsnull() {
		return nil, true
	}
	switch {
	case c.GetIval() != nil:
		return float64(c.GetIval().GetIval()), true
	case c.GetFval() != nil:
		f, err := strconv.ParseFloat(c.GetFval().GetFval(), 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case c.GetSval() != nil:
		return c.GetSval().GetSval(), true
	case c.GetBoolval() != nil:
		return c.GetBoolval().GetBoolval(), true
	default:
		return nil, false
	}
}

// compare returns -1/0/1 for a<b/a==b/a>b, handling the numeric-vs-string
// pairings Level A actually needs; anything else is not comparable (caller
// downgrades to NotEvaluated).
func compare(a, b any) (int, bool) {
	af, aIsNum := asFloat(a)
	bf, bIsNum := asFloat(b)
	if aIsNum && bIsNum {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

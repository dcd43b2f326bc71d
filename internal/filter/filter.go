package filter

import (
	"fmt"
	"regexp"

	"statbench/domain/table"
	"statbench/internal/errors"
	"statbench/internal/expr"
)

// Predicate decides whether a row stays in the materialized row set
type Predicate interface {
	Test(row table.Row) bool
}

// PredicateFunc adapts a function to Predicate
type PredicateFunc func(row table.Row) bool

// Test calls f(row)
func (f PredicateFunc) Test(row table.Row) bool { return f(row) }

// All keeps a row only when every predicate keeps it
type All []Predicate

// Test implements Predicate
func (a All) Test(row table.Row) bool {
	for _, p := range a {
		if !p.Test(row) {
			return false
		}
	}
	return true
}

// Compile builds the predicate for a described table. A non-empty expression wins;
// otherwise the structured per-column rules are AND-combined. A nil predicate with a
// nil error means no filter is configured.
func Compile(columns []table.Column, expression string) (Predicate, error) {
	if expression != "" {
		prog, err := expr.Compile(expression, columns)
		if err != nil {
			return nil, err
		}
		return prog, nil
	}

	var preds All
	for i := range columns {
		col := &columns[i]
		if col.Filter == nil {
			continue
		}
		p, err := compileRule(col, *col.Filter)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if len(preds) == 0 {
		return nil, nil
	}
	return preds, nil
}

// Apply returns the rows p keeps; a nil predicate keeps every row
func Apply(p Predicate, rows []table.Row) []table.Row {
	if p == nil {
		return rows
	}
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		if p.Test(r) {
			out = append(out, r)
		}
	}
	return out
}

// compileRule turns one structured rule into a predicate. Absent cells fail every
// operator except is_absent.
func compileRule(col *table.Column, rule table.FilterRule) (Predicate, error) {
	name := col.Name
	operand := expr.FromCell(rule.Operand)

	present := func(test func(v expr.Value) bool) Predicate {
		return PredicateFunc(func(row table.Row) bool {
			cell := row.Get(name)
			return cell.IsPresent() && test(expr.FromCell(cell))
		})
	}
	relational := func(op expr.TokenType, bound expr.Value) func(expr.Value) bool {
		return func(v expr.Value) bool { return expr.Compare(op, v, bound) }
	}

	switch rule.Operator {
	case table.FilterEqual:
		return present(func(v expr.Value) bool { return expr.LooseEqual(v, operand) }), nil
	case table.FilterNotEqual:
		return present(func(v expr.Value) bool { return !expr.LooseEqual(v, operand) }), nil
	case table.FilterGreater:
		return present(relational(expr.GT, operand)), nil
	case table.FilterGreaterEqual:
		return present(relational(expr.GTE, operand)), nil
	case table.FilterLess:
		return present(relational(expr.LT, operand)), nil
	case table.FilterLessEqual:
		return present(relational(expr.LTE, operand)), nil
	case table.FilterBetween:
		upper := expr.FromCell(rule.Upper)
		return present(func(v expr.Value) bool {
			return expr.Compare(expr.GTE, v, operand) && expr.Compare(expr.LTE, v, upper)
		}), nil
	case table.FilterAboveMean, table.FilterBelowMean:
		mean, ok := col.Statistic(table.StatMean)
		if !ok {
			return nil, errors.MissingStatistic(name, table.StatMean)
		}
		op := expr.GT
		if rule.Operator == table.FilterBelowMean {
			op = expr.LT
		}
		return present(relational(op, expr.Number(mean))), nil
	case table.FilterMatches:
		re, err := regexp.Compile(rule.Operand.String())
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("column %q: invalid pattern: %v", name, err))
		}
		return PredicateFunc(func(row table.Row) bool {
			cell := row.Get(name)
			return cell.IsPresent() && re.MatchString(cell.String())
		}), nil
	case table.FilterIsAbsent:
		return PredicateFunc(func(row table.Row) bool { return row.Get(name).IsAbsent() }), nil
	case table.FilterIsPresent:
		return PredicateFunc(func(row table.Row) bool { return row.Get(name).IsPresent() }), nil
	}
	return nil, errors.InvalidInput(fmt.Sprintf("column %q: unknown filter operator %q", name, rule.Operator))
}

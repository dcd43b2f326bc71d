package interpolation

import (
	"statbench/domain/table"
	"statbench/internal/errors"
)

// Engine fills absent cells of columns that request an interpolation method
type Engine struct {
	lagrangeMaxPoints int
}

// NewEngine creates an engine. lagrangeMaxPoints caps the nodes used per Lagrange evaluation.
func NewEngine(lagrangeMaxPoints int) *Engine {
	if lagrangeMaxPoints < 1 {
		lagrangeMaxPoints = 1
	}
	return &Engine{lagrangeMaxPoints: lagrangeMaxPoints}
}

// Apply returns copies of columns and rows with absent cells filled. Reference
// columns are always read from the input rows, so the result does not depend on
// the order columns are processed in. ImputedCount is set on every column.
func (e *Engine) Apply(columns []table.Column, rows []table.Row) ([]table.Column, []table.Row, error) {
	outCols := make([]table.Column, len(columns))
	outRows := table.CloneRows(rows)
	names := make(map[string]bool, len(columns))
	for _, c := range columns {
		names[c.Name] = true
	}

	for i, col := range columns {
		col = col.Clone()
		col.ImputedCount = 0
		if col.IsDerived || col.Interpolation == nil {
			outCols[i] = col
			continue
		}

		ip := col.Interpolation
		if ip.Method.NeedsReference() && !names[ip.ReferenceColumn] {
			return nil, nil, errors.InsufficientReferenceData(col.Name,
				"reference column "+quote(ip.ReferenceColumn)+" does not exist")
		}

		filled, err := e.fill(col.Name, *ip, rows)
		if err != nil {
			return nil, nil, err
		}
		for idx, v := range filled {
			outRows[idx][col.Name] = v
			col.ImputedCount++
		}
		outCols[i] = col
	}
	return outCols, outRows, nil
}

// fill computes the replacement for every absent cell it can fill, keyed by row index
func (e *Engine) fill(column string, ip table.Interpolation, rows []table.Row) (map[int]table.Value, error) {
	target := columnValues(rows, column)
	if !anyAbsent(target) {
		return nil, nil
	}

	switch ip.Method {
	case table.InterpolateMean:
		return substitute(column, target, Mean)
	case table.InterpolateMedian:
		return substitute(column, target, Median)
	case table.InterpolateNearest:
		return Nearest(column, target, columnValues(rows, ip.ReferenceColumn))
	case table.InterpolateLagrange:
		return Lagrange(column, target, columnValues(rows, ip.ReferenceColumn), e.lagrangeMaxPoints)
	}
	return nil, errors.InvalidInput("unknown interpolation method " + quote(string(ip.Method)))
}

func substitute(column string, target []table.Value, center func([]float64) (float64, error)) (map[int]table.Value, error) {
	present := numericValues(target)
	if len(present) == 0 {
		return nil, errors.InsufficientReferenceData(column, "no numeric values to interpolate from")
	}
	c, err := center(present)
	if err != nil {
		return nil, errors.Wrapf(err, "interpolating %q", column)
	}

	out := make(map[int]table.Value)
	for idx, v := range target {
		if v.IsAbsent() {
			out[idx] = table.Num(c)
		}
	}
	return out, nil
}

func columnValues(rows []table.Row, name string) []table.Value {
	out := make([]table.Value, len(rows))
	for i, r := range rows {
		out[i] = r.Get(name)
	}
	return out
}

func numericValues(values []table.Value) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := table.FiniteNumber(v); ok {
			out = append(out, f)
		}
	}
	return out
}

func anyAbsent(values []table.Value) bool {
	for _, v := range values {
		if v.IsAbsent() {
			return true
		}
	}
	return false
}

func quote(s string) string {
	return `"` + s + `"`
}

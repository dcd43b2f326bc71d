package profiling

import (
	"context"

	"statbench/domain/table"
	"statbench/internal/errors"

	"golang.org/x/sync/errgroup"
)

// DataProfiler infers scale types and computes descriptive statistics per column
type DataProfiler struct {
	parallelism int
}

// NewDataProfiler creates a profiler that describes at most parallelism columns at once
func NewDataProfiler(parallelism int) *DataProfiler {
	if parallelism < 1 {
		parallelism = 1
	}
	return &DataProfiler{parallelism: parallelism}
}

// Describe returns copies of columns with counts, scale type and statistics filled in
// from rows. Derived columns keep the metadata their synthesizer assigned.
func (dp *DataProfiler) Describe(ctx context.Context, columns []table.Column, rows []table.Row) ([]table.Column, error) {
	out := make([]table.Column, len(columns))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(dp.parallelism)
	for i := range columns {
		col := columns[i]
		if col.IsDerived {
			out[i] = col.Clone()
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			described, err := DescribeColumn(col, columnValues(rows, col.Name))
			if err != nil {
				return err
			}
			out[i] = described
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// DescribeColumn profiles one column's values
func DescribeColumn(col table.Column, values []table.Value) (table.Column, error) {
	col = col.Clone()
	col.Count = len(values)
	col.MissingCount = 0
	col.Summary = nil

	unique := make(map[string]struct{})
	for _, v := range values {
		if v.IsAbsent() {
			col.MissingCount++
			continue
		}
		unique[v.String()] = struct{}{}
	}
	col.ValidCount = col.Count - col.MissingCount
	col.UniqueCount = len(unique)
	col.ObservedCount = col.ValidCount - col.ImputedCount

	numbers, scale := InferScale(values)
	col.ScaleType = scale
	if scale != table.ScaleIntervalRatio {
		return col, nil
	}

	summary, err := Summarize(numbers)
	if err != nil {
		return col, errors.Wrapf(err, "describing column %q", col.Name)
	}
	col.Summary = summary
	return col, nil
}

// InferScale classifies values as interval-or-ratio when every present value coerces
// to a finite number and at least one is present. The coerced numbers are returned
// for interval columns.
func InferScale(values []table.Value) ([]float64, table.ScaleType) {
	numbers := make([]float64, 0, len(values))
	for _, v := range values {
		if v.IsAbsent() {
			continue
		}
		f, ok := table.FiniteNumber(v)
		if !ok {
			return nil, table.ScaleNominalOrdinal
		}
		numbers = append(numbers, f)
	}
	if len(numbers) == 0 {
		return nil, table.ScaleNominalOrdinal
	}
	return numbers, table.ScaleIntervalRatio
}

func columnValues(rows []table.Row, name string) []table.Value {
	out := make([]table.Value, len(rows))
	for i, r := range rows {
		out[i] = r.Get(name)
	}
	return out
}

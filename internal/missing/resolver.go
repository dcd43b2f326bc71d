package missing

import (
	"context"

	"statbench/domain/table"

	"golang.org/x/sync/errgroup"
)

// Resolver turns user-declared sentinel values into absent cells
type Resolver struct {
	parallelism int
}

// NewResolver creates a resolver that scans at most parallelism columns at once
func NewResolver(parallelism int) *Resolver {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Resolver{parallelism: parallelism}
}

// Resolve returns new rows in which every value loosely equal to one of its column's
// sentinels is absent. Columns without sentinels and derived columns pass through.
// The input rows are not modified.
func (r *Resolver) Resolve(ctx context.Context, columns []table.Column, rows []table.Row) ([]table.Row, error) {
	masks := make([][]int, len(columns))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i := range columns {
		col := columns[i]
		if col.IsDerived || len(col.MissingSentinels) == 0 {
			continue
		}
		g.Go(func() error {
			hits, err := scanColumn(ctx, col, rows)
			if err != nil {
				return err
			}
			masks[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := table.CloneRows(rows)
	for i, hits := range masks {
		name := columns[i].Name
		for _, idx := range hits {
			out[idx][name] = table.Absent()
		}
	}
	return out, nil
}

// scanColumn lists the row indices whose value matches a sentinel
func scanColumn(ctx context.Context, col table.Column, rows []table.Row) ([]int, error) {
	var hits []int
	for idx, row := range rows {
		if idx%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if IsSentinel(row.Get(col.Name), col.MissingSentinels) {
			hits = append(hits, idx)
		}
	}
	return hits, nil
}

// IsSentinel reports whether v loosely equals any of sentinels
func IsSentinel(v table.Value, sentinels []table.Value) bool {
	for _, s := range sentinels {
		if table.LooselyEqual(v, s) {
			return true
		}
	}
	return false
}

package derive

import (
	"statbench/domain/table"
	"statbench/internal/discretize"
	"statbench/internal/errors"

	"gonum.org/v1/gonum/floats"
)

// ColumnSynthesizer generates standardized, centered and discretized siblings of base columns
type ColumnSynthesizer struct {
	discretizer *discretize.Discretizer
}

// NewColumnSynthesizer creates a synthesizer that discretizes with d
func NewColumnSynthesizer(d *discretize.Discretizer) *ColumnSynthesizer {
	return &ColumnSynthesizer{discretizer: d}
}

// DerivedName is the column name used for a derived kind of base
func DerivedName(base string, kind table.DerivedKind) string {
	return base + "_" + string(kind)
}

// SynthesizeColumns returns new columns and rows in which every requested derived
// column sits immediately after its base column. Base columns must already be
// described; their statistics seed the derived ones.
func (s *ColumnSynthesizer) SynthesizeColumns(columns []table.Column, rows []table.Row) ([]table.Column, []table.Row, error) {
	taken := make(map[string]bool, len(columns))
	for _, c := range columns {
		taken[c.Name] = true
	}

	outCols := make([]table.Column, 0, len(columns))
	outRows := table.CloneRows(rows)

	for _, base := range columns {
		outCols = append(outCols, base.Clone())
		if s.shouldSkip(base) {
			continue
		}

		drafts, err := s.synthesize(base, rows)
		if err != nil {
			return nil, nil, err
		}
		for _, d := range drafts {
			if taken[d.column.Name] {
				return nil, nil, errors.DuplicateColumnName(d.column.Name)
			}
			taken[d.column.Name] = true
			for i, v := range d.values {
				outRows[i][d.column.Name] = v
			}
			outCols = append(outCols, d.column)
		}
	}
	return outCols, outRows, nil
}

func (s *ColumnSynthesizer) shouldSkip(base table.Column) bool {
	return base.IsDerived || !base.Derive.Any()
}

type draft struct {
	column table.Column
	values []table.Value
}

func (s *ColumnSynthesizer) synthesize(base table.Column, rows []table.Row) ([]draft, error) {
	if base.ScaleType != table.ScaleIntervalRatio || base.Summary == nil {
		stat := table.StatMean
		if !base.Derive.Standardize && !base.Derive.Center {
			stat = table.StatMin
		}
		return nil, errors.MissingStatistic(base.Name, stat)
	}

	values := make([]table.Value, len(rows))
	for i, r := range rows {
		values[i] = r.Get(base.Name)
	}

	var drafts []draft
	if base.Derive.Standardize {
		drafts = append(drafts, s.synthesizeStandardized(base, values))
	}
	if base.Derive.Center {
		drafts = append(drafts, s.synthesizeCentered(base, values))
	}
	if base.Derive.Discretize != nil {
		d, err := s.synthesizeDiscretized(base, values)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// synthesizeStandardized computes (x - mean) / std. A constant parent has no
// standard score, so every value is absent.
func (s *ColumnSynthesizer) synthesizeStandardized(base table.Column, values []table.Value) draft {
	col := derivedColumn(base, table.DerivedStandardized)
	mean, std := base.Summary.Mean, base.Summary.Std
	if std == 0 {
		out := make([]table.Value, len(values))
		col.ScaleType = table.ScaleNominalOrdinal
		countValues(&col, out)
		return draft{column: col, values: out}
	}

	out := affine(values, -mean, 1/std)
	summary := affineSummary(*base.Summary, -mean, 1/std)
	summary.Mean = 0
	summary.Std = 1
	col.Summary = &summary
	countValues(&col, out)
	return draft{column: col, values: out}
}

// synthesizeCentered computes x - mean; the spread is unchanged
func (s *ColumnSynthesizer) synthesizeCentered(base table.Column, values []table.Value) draft {
	col := derivedColumn(base, table.DerivedCentered)
	mean := base.Summary.Mean

	out := affine(values, -mean, 1)
	summary := affineSummary(*base.Summary, -mean, 1)
	summary.Mean = 0
	summary.Std = base.Summary.Std
	col.Summary = &summary
	countValues(&col, out)
	return draft{column: col, values: out}
}

// synthesizeDiscretized maps values to group indices; the result is nominal
func (s *ColumnSynthesizer) synthesizeDiscretized(base table.Column, values []table.Value) (draft, error) {
	col := derivedColumn(base, table.DerivedDiscretized)
	col.ScaleType = table.ScaleNominalOrdinal

	out, err := s.discretizer.Apply(*base.Derive.Discretize, values)
	if err != nil {
		return draft{}, errors.Wrapf(err, "discretizing %q", base.Name)
	}
	countValues(&col, out)
	return draft{column: col, values: out}, nil
}

func derivedColumn(base table.Column, kind table.DerivedKind) table.Column {
	return table.Column{
		Name:        DerivedName(base.Name, kind),
		ScaleType:   table.ScaleIntervalRatio,
		IsDerived:   true,
		DerivedFrom: base.Name,
		DerivedKind: kind,
	}
}

// affine maps every numeric cell to (x + shift) * scale; other cells become absent
func affine(values []table.Value, shift, scale float64) []table.Value {
	idx := make([]int, 0, len(values))
	nums := make([]float64, 0, len(values))
	for i, v := range values {
		if f, ok := table.FiniteNumber(v); ok {
			idx = append(idx, i)
			nums = append(nums, f)
		}
	}
	floats.AddConst(shift, nums)
	floats.Scale(scale, nums)

	out := make([]table.Value, len(values))
	for j, i := range idx {
		out[i] = table.Num(nums[j])
	}
	return out
}

// affineSummary transforms the location statistics of s; a positive scale preserves their order
func affineSummary(s table.Summary, shift, scale float64) table.Summary {
	loc := []float64{s.Min, s.Max, s.Q1, s.Q2, s.Q3, s.Mode}
	floats.AddConst(shift, loc)
	floats.Scale(scale, loc)
	return table.Summary{
		Min:  loc[0],
		Max:  loc[1],
		Q1:   loc[2],
		Q2:   loc[3],
		Q3:   loc[4],
		Mode: loc[5],
	}
}

func countValues(col *table.Column, values []table.Value) {
	col.Count = len(values)
	unique := make(map[string]struct{})
	for _, v := range values {
		if v.IsAbsent() {
			col.MissingCount++
			continue
		}
		unique[v.String()] = struct{}{}
	}
	col.ValidCount = col.Count - col.MissingCount
	col.ObservedCount = col.ValidCount
	col.UniqueCount = len(unique)
}

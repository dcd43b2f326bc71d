package table

import (
	"sort"
)

// ScaleType is the inferred measurement scale of a column
type ScaleType string

const (
	ScaleNominalOrdinal ScaleType = "nominal_or_ordinal"
	ScaleIntervalRatio  ScaleType = "interval_or_ratio"
)

// DerivedKind names the transformation that produced a derived column
type DerivedKind string

const (
	DerivedStandardized DerivedKind = "standardized"
	DerivedCentered     DerivedKind = "centered"
	DerivedDiscretized  DerivedKind = "discretized"
)

// Statistic names accepted by the aggregate accessors of the expression language
const (
	StatMin  = "min"
	StatMax  = "max"
	StatMean = "mean"
	StatMode = "mode"
	StatQ1   = "q1"
	StatQ2   = "q2"
	StatQ3   = "q3"
	StatStd  = "std"
)

// StatisticNames lists every aggregate accessor in a stable order
var StatisticNames = []string{StatMin, StatMax, StatMean, StatMode, StatQ1, StatQ2, StatQ3, StatStd}

// Summary holds the descriptive statistics of an interval-or-ratio column
type Summary struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Q1   float64 `json:"q1"`
	Q2   float64 `json:"q2"`
	Q3   float64 `json:"q3"`
	Mode float64 `json:"mode"`
}

// Statistic looks up a summary field by accessor name
func (s *Summary) Statistic(name string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	switch name {
	case StatMin:
		return s.Min, true
	case StatMax:
		return s.Max, true
	case StatMean:
		return s.Mean, true
	case StatMode:
		return s.Mode, true
	case StatQ1:
		return s.Q1, true
	case StatQ2:
		return s.Q2, true
	case StatQ3:
		return s.Q3, true
	case StatStd:
		return s.Std, true
	}
	return 0, false
}

// Column is the descriptor of one variable: user rules plus everything derived from the data
type Column struct {
	Name      string    `json:"name"`
	ScaleType ScaleType `json:"scale_type"`

	Count         int `json:"count"`
	MissingCount  int `json:"missing_count"`
	ValidCount    int `json:"valid_count"`
	UniqueCount   int `json:"unique_count"`
	ObservedCount int `json:"observed_count"` // present before interpolation
	ImputedCount  int `json:"imputed_count"`

	Summary *Summary `json:"summary,omitempty"`

	MissingSentinels []Value        `json:"missing_sentinels,omitempty"`
	Interpolation    *Interpolation `json:"interpolation,omitempty"`
	Derive           DeriveRequest  `json:"derive"`
	Filter           *FilterRule    `json:"filter,omitempty"`

	IsDerived   bool        `json:"is_derived"`
	DerivedFrom string      `json:"derived_from,omitempty"`
	DerivedKind DerivedKind `json:"derived_kind,omitempty"`
}

// Statistic returns a precomputed statistic; false when the column has none
func (c *Column) Statistic(name string) (float64, bool) {
	return c.Summary.Statistic(name)
}

// Clone deep-copies the descriptor
func (c Column) Clone() Column {
	out := c
	if c.Summary != nil {
		s := *c.Summary
		out.Summary = &s
	}
	if c.MissingSentinels != nil {
		out.MissingSentinels = append([]Value(nil), c.MissingSentinels...)
	}
	if c.Interpolation != nil {
		i := *c.Interpolation
		out.Interpolation = &i
	}
	out.Derive = c.Derive.Clone()
	if c.Filter != nil {
		f := *c.Filter
		out.Filter = &f
	}
	return out
}

// Row maps a column name to its cell; a missing key is absent
type Row map[string]Value

// Get returns the cell for name
func (r Row) Get(name string) Value {
	return r[name]
}

// Clone copies the row
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Dataset is the imported raw data: header order plus row snapshots
type Dataset struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// Clone deep-copies the dataset
func (d Dataset) Clone() Dataset {
	return Dataset{
		Headers: append([]string(nil), d.Headers...),
		Rows:    CloneRows(d.Rows),
	}
}

// HeaderNames returns the declared headers, or the sorted keys of the first row when none were declared
func (d Dataset) HeaderNames() []string {
	if len(d.Headers) > 0 {
		return append([]string(nil), d.Headers...)
	}
	if len(d.Rows) == 0 {
		return nil
	}
	names := make([]string, 0, len(d.Rows[0]))
	for name := range d.Rows[0] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FirstDuplicate returns the first name that occurs more than once
func FirstDuplicate(names []string) (string, bool) {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return n, true
		}
		seen[n] = true
	}
	return "", false
}

// Table is a materialized (columns, rows) pair
type Table struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Index returns the position of the named column or -1
func (t *Table) Index(name string) int {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named descriptor
func (t *Table) Column(name string) (*Column, bool) {
	if i := t.Index(name); i >= 0 {
		return &t.Columns[i], true
	}
	return nil, false
}

// Values extracts one column as a slice aligned with Rows
func (t *Table) Values(name string) []Value {
	out := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[name]
	}
	return out
}

// Clone deep-copies columns and rows
func (t *Table) Clone() *Table {
	cols := make([]Column, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c.Clone()
	}
	return &Table{Columns: cols, Rows: CloneRows(t.Rows)}
}

// CloneRows copies every row
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// BootstrapColumns seeds rule-less descriptors from header names
func BootstrapColumns(names []string) []Column {
	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name, ScaleType: ScaleNominalOrdinal}
	}
	return cols
}

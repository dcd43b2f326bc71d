package table

import (
	"fmt"
	"regexp"

	"statbench/internal/errors"
)

// InterpolationMethod selects how absent values are filled
type InterpolationMethod string

const (
	InterpolateMean     InterpolationMethod = "mean"
	InterpolateMedian   InterpolationMethod = "median"
	InterpolateNearest  InterpolationMethod = "nearest"
	InterpolateLagrange InterpolationMethod = "lagrange"
)

// NeedsReference reports whether the method pairs the column with a reference column
func (m InterpolationMethod) NeedsReference() bool {
	return m == InterpolateNearest || m == InterpolateLagrange
}

// Interpolation is the per-column fill rule
type Interpolation struct {
	Method          InterpolationMethod `json:"method"`
	ReferenceColumn string              `json:"reference_column,omitempty"`
}

// DiscretizeMethod selects the bucketing algorithm
type DiscretizeMethod string

const (
	DiscretizeEqualWidth     DiscretizeMethod = "equal_width"
	DiscretizeEqualFrequency DiscretizeMethod = "equal_frequency"
	DiscretizeKMeans         DiscretizeMethod = "kmeans"
)

// DiscretizeRequest asks for a discretized sibling column
type DiscretizeRequest struct {
	Method     DiscretizeMethod `json:"method"`
	GroupCount int              `json:"group_count"`
}

// DeriveRequest lists the derived siblings requested for a base column
type DeriveRequest struct {
	Standardize bool               `json:"standardize,omitempty"`
	Center      bool               `json:"center,omitempty"`
	Discretize  *DiscretizeRequest `json:"discretize,omitempty"`
}

// Any reports whether at least one sibling is requested
func (d DeriveRequest) Any() bool {
	return d.Standardize || d.Center || d.Discretize != nil
}

// Clone deep-copies the request
func (d DeriveRequest) Clone() DeriveRequest {
	out := d
	if d.Discretize != nil {
		dr := *d.Discretize
		out.Discretize = &dr
	}
	return out
}

// FilterOperator is the comparison used by a structured per-column filter
type FilterOperator string

const (
	FilterEqual        FilterOperator = "eq"
	FilterNotEqual     FilterOperator = "ne"
	FilterGreater      FilterOperator = "gt"
	FilterGreaterEqual FilterOperator = "gte"
	FilterLess         FilterOperator = "lt"
	FilterLessEqual    FilterOperator = "lte"
	FilterBetween      FilterOperator = "between"
	FilterAboveMean    FilterOperator = "above_mean"
	FilterBelowMean    FilterOperator = "below_mean"
	FilterMatches      FilterOperator = "matches"
	FilterIsAbsent     FilterOperator = "is_absent"
	FilterIsPresent    FilterOperator = "is_present"
)

// FilterRule is a structured predicate on one column. Between uses Operand and Upper inclusively.
type FilterRule struct {
	Operator FilterOperator `json:"operator"`
	Operand  Value          `json:"operand"`
	Upper    Value          `json:"upper"`
}

// ComputedColumn is a user-defined column produced by an expression
type ComputedColumn struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

// ColumnRule carries every user-set rule for one column
type ColumnRule struct {
	Name             string         `json:"name"`
	MissingSentinels []Value        `json:"missing_sentinels,omitempty"`
	Interpolation    *Interpolation `json:"interpolation,omitempty"`
	Derive           DeriveRequest  `json:"derive"`
	Filter           *FilterRule    `json:"filter,omitempty"`
}

// RuleSet is the whole mutable input besides raw data; it is persisted verbatim
type RuleSet struct {
	Columns          []ColumnRule     `json:"columns"`
	FilterExpression string           `json:"filter_expression,omitempty"`
	ComputedColumns  []ComputedColumn `json:"computed_columns,omitempty"`
}

// Rule returns the rule for the named column
func (rs RuleSet) Rule(name string) (ColumnRule, bool) {
	for _, r := range rs.Columns {
		if r.Name == name {
			return r, true
		}
	}
	return ColumnRule{}, false
}

// HasColumnFilters reports whether any structured per-column filter is set
func (rs RuleSet) HasColumnFilters() bool {
	for _, r := range rs.Columns {
		if r.Filter != nil {
			return true
		}
	}
	return false
}

// Clone deep-copies the rule set
func (rs RuleSet) Clone() RuleSet {
	out := RuleSet{FilterExpression: rs.FilterExpression}
	if rs.Columns != nil {
		out.Columns = make([]ColumnRule, len(rs.Columns))
		for i, r := range rs.Columns {
			c := r
			c.MissingSentinels = append([]Value(nil), r.MissingSentinels...)
			if r.Interpolation != nil {
				ip := *r.Interpolation
				c.Interpolation = &ip
			}
			c.Derive = r.Derive.Clone()
			if r.Filter != nil {
				f := *r.Filter
				c.Filter = &f
			}
			out.Columns[i] = c
		}
	}
	if rs.ComputedColumns != nil {
		out.ComputedColumns = append([]ComputedColumn(nil), rs.ComputedColumns...)
	}
	return out
}

// Validate checks the rule set for shape errors that do not depend on the data
func (rs RuleSet) Validate() error {
	seen := make(map[string]bool, len(rs.Columns))
	for _, r := range rs.Columns {
		if r.Name == "" {
			return errors.InvalidInput("column rule without a name")
		}
		if seen[r.Name] {
			return errors.InvalidInput(fmt.Sprintf("duplicate rule for column %q", r.Name))
		}
		seen[r.Name] = true

		if err := validateInterpolation(r.Name, r.Interpolation); err != nil {
			return err
		}
		if err := validateDiscretize(r.Name, r.Derive.Discretize); err != nil {
			return err
		}
		if err := validateFilter(r.Name, r.Filter); err != nil {
			return err
		}
	}

	if rs.FilterExpression != "" && rs.HasColumnFilters() {
		return errors.InvalidInput("a table filter expression and per-column filter rules are mutually exclusive")
	}

	names := make(map[string]bool, len(rs.ComputedColumns))
	for _, cc := range rs.ComputedColumns {
		if cc.Name == "" || cc.Expression == "" {
			return errors.InvalidInput("computed column needs a name and an expression")
		}
		if names[cc.Name] {
			return errors.DuplicateColumnName(cc.Name)
		}
		names[cc.Name] = true
	}
	return nil
}

func validateInterpolation(column string, ip *Interpolation) error {
	if ip == nil {
		return nil
	}
	switch ip.Method {
	case InterpolateMean, InterpolateMedian:
		return nil
	case InterpolateNearest, InterpolateLagrange:
		if ip.ReferenceColumn == "" {
			return errors.InsufficientReferenceData(column, fmt.Sprintf("%s interpolation requires a reference column", ip.Method))
		}
		if ip.ReferenceColumn == column {
			return errors.InsufficientReferenceData(column, "a column cannot be its own reference")
		}
		return nil
	default:
		return errors.InvalidInput(fmt.Sprintf("column %q: unknown interpolation method %q", column, ip.Method))
	}
}

func validateDiscretize(column string, dr *DiscretizeRequest) error {
	if dr == nil {
		return nil
	}
	switch dr.Method {
	case DiscretizeEqualWidth, DiscretizeEqualFrequency, DiscretizeKMeans:
	default:
		return errors.InvalidInput(fmt.Sprintf("column %q: unknown discretization method %q", column, dr.Method))
	}
	if dr.GroupCount < 1 {
		return errors.InvalidInput(fmt.Sprintf("column %q: group count must be at least 1", column))
	}
	return nil
}

func validateFilter(column string, f *FilterRule) error {
	if f == nil {
		return nil
	}
	switch f.Operator {
	case FilterEqual, FilterNotEqual, FilterGreater, FilterGreaterEqual, FilterLess, FilterLessEqual:
		if f.Operand.IsAbsent() {
			return errors.InvalidInput(fmt.Sprintf("column %q: %s filter needs an operand", column, f.Operator))
		}
	case FilterBetween:
		if f.Operand.IsAbsent() || f.Upper.IsAbsent() {
			return errors.InvalidInput(fmt.Sprintf("column %q: between filter needs both bounds", column))
		}
	case FilterMatches:
		if _, err := regexp.Compile(f.Operand.String()); err != nil || !f.Operand.IsPresent() {
			return errors.InvalidInput(fmt.Sprintf("column %q: invalid pattern %q", column, f.Operand.String()))
		}
	case FilterAboveMean, FilterBelowMean, FilterIsAbsent, FilterIsPresent:
	default:
		return errors.InvalidInput(fmt.Sprintf("column %q: unknown filter operator %q", column, f.Operator))
	}
	return nil
}

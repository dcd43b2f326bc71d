package table

import (
	"testing"

	"statbench/internal/errors"

	"github.com/stretchr/testify/assert"
)

func TestRuleSetValidate(t *testing.T) {
	tests := []struct {
		name string
		rs   RuleSet
		code string
	}{
		{
			name: "empty rule set",
			rs:   RuleSet{},
		},
		{
			name: "duplicate column rule",
			rs:   RuleSet{Columns: []ColumnRule{{Name: "a"}, {Name: "a"}}},
			code: errors.CodeInvalidInput,
		},
		{
			name: "nearest without reference",
			rs: RuleSet{Columns: []ColumnRule{{
				Name:          "a",
				Interpolation: &Interpolation{Method: InterpolateNearest},
			}}},
			code: errors.CodeInsufficientReferenceData,
		},
		{
			name: "unknown interpolation",
			rs: RuleSet{Columns: []ColumnRule{{
				Name:          "a",
				Interpolation: &Interpolation{Method: "spline"},
			}}},
			code: errors.CodeInvalidInput,
		},
		{
			name: "zero groups",
			rs: RuleSet{Columns: []ColumnRule{{
				Name:   "a",
				Derive: DeriveRequest{Discretize: &DiscretizeRequest{Method: DiscretizeEqualWidth}},
			}}},
			code: errors.CodeInvalidInput,
		},
		{
			name: "both filter surfaces",
			rs: RuleSet{
				Columns:          []ColumnRule{{Name: "a", Filter: &FilterRule{Operator: FilterIsPresent}}},
				FilterExpression: ":::a::: > 1",
			},
			code: errors.CodeInvalidInput,
		},
		{
			name: "bad regex",
			rs: RuleSet{Columns: []ColumnRule{{
				Name:   "a",
				Filter: &FilterRule{Operator: FilterMatches, Operand: Str("(")},
			}}},
			code: errors.CodeInvalidInput,
		},
		{
			name: "duplicate computed column",
			rs: RuleSet{ComputedColumns: []ComputedColumn{
				{Name: "c", Expression: "1"},
				{Name: "c", Expression: "2"},
			}},
			code: errors.CodeDuplicateColumnName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rs.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestRuleSetCloneIsDeep(t *testing.T) {
	rs := RuleSet{Columns: []ColumnRule{{
		Name:             "a",
		MissingSentinels: []Value{Num(-99)},
		Interpolation:    &Interpolation{Method: InterpolateMean},
		Derive:           DeriveRequest{Discretize: &DiscretizeRequest{Method: DiscretizeKMeans, GroupCount: 2}},
	}}}

	clone := rs.Clone()
	clone.Columns[0].MissingSentinels[0] = Num(0)
	clone.Columns[0].Interpolation.Method = InterpolateMedian
	clone.Columns[0].Derive.Discretize.GroupCount = 5

	assert.Equal(t, Num(-99), rs.Columns[0].MissingSentinels[0])
	assert.Equal(t, InterpolateMean, rs.Columns[0].Interpolation.Method)
	assert.Equal(t, 2, rs.Columns[0].Derive.Discretize.GroupCount)
}

func TestDatasetHeaderNames(t *testing.T) {
	ds := Dataset{Rows: []Row{{"b": Num(1), "a": Num(2)}}}
	assert.Equal(t, []string{"a", "b"}, ds.HeaderNames())

	ds.Headers = []string{"b", "a"}
	assert.Equal(t, []string{"b", "a"}, ds.HeaderNames())
}

func TestFirstDuplicate(t *testing.T) {
	dup, ok := FirstDuplicate([]string{"a", "b", "a", "b"})
	assert.True(t, ok)
	assert.Equal(t, "a", dup)

	_, ok = FirstDuplicate([]string{"a", "b"})
	assert.False(t, ok)
}

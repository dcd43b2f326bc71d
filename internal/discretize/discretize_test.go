package discretize

import (
	"testing"

	"statbench/domain/table"
	"statbench/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualWidth(t *testing.T) {
	assert.Equal(t, []int{0, 1, 1}, EqualWidth([]float64{0, 5, 10}, 2))
	assert.Equal(t, []int{0, 1, 1, 2, 2}, EqualWidth([]float64{0, 3, 4, 8, 9}, 3))
	assert.Equal(t, []int{0, 0}, EqualWidth([]float64{4, 4}, 3), "degenerate range")
}

func TestEqualFrequency(t *testing.T) {
	assert.Equal(t, []int{0, 0, 1, 1}, EqualFrequency([]float64{1, 2, 3, 4}, 2))
	// ties share the rank of their first occurrence
	assert.Equal(t, []int{0, 0, 0, 1}, EqualFrequency([]float64{5, 5, 5, 9}, 2))
	assert.Equal(t, []int{2, 0, 1}, EqualFrequency([]float64{30, 10, 20}, 3))
}

func TestKMeans(t *testing.T) {
	values := []float64{100, 1, 2, 101, 3, 102}
	assert.Equal(t, []int{1, 0, 0, 1, 0, 1}, KMeans(values, 2, 100))

	assert.Equal(t, []int{0, 0, 0}, KMeans([]float64{7, 7, 7}, 1, 10))
}

func TestApplyPropagatesAbsent(t *testing.T) {
	cells := []table.Value{table.Num(0), table.Absent(), table.Str("10"), table.Str("x"), table.Num(5)}

	out, err := NewDiscretizer(100).Apply(table.DiscretizeRequest{Method: table.DiscretizeEqualWidth, GroupCount: 2}, cells)
	require.NoError(t, err)
	assert.Equal(t, []table.Value{table.Num(0), table.Absent(), table.Num(1), table.Absent(), table.Num(1)}, out)
}

func TestApplyRejectsBadRequest(t *testing.T) {
	_, err := NewDiscretizer(1).Apply(table.DiscretizeRequest{Method: table.DiscretizeKMeans}, nil)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))

	_, err = NewDiscretizer(1).Apply(table.DiscretizeRequest{Method: "quantile", GroupCount: 2}, []table.Value{table.Num(1)})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

package discretize

import (
	"math"
	"sort"

	"statbench/domain/table"
	"statbench/internal/errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Discretizer maps continuous values to group indices in [0, groupCount)
type Discretizer struct {
	maxIterations int
}

// NewDiscretizer creates a discretizer; maxIterations bounds the k-means refinement
func NewDiscretizer(maxIterations int) *Discretizer {
	if maxIterations < 1 {
		maxIterations = 1
	}
	return &Discretizer{maxIterations: maxIterations}
}

// Apply discretizes a column. Absent and non-numeric cells yield absent group indices.
func (d *Discretizer) Apply(req table.DiscretizeRequest, cells []table.Value) ([]table.Value, error) {
	if req.GroupCount < 1 {
		return nil, errors.InvalidInput("group count must be at least 1")
	}

	positions := make([]int, 0, len(cells))
	values := make([]float64, 0, len(cells))
	for i, c := range cells {
		if f, ok := table.FiniteNumber(c); ok {
			positions = append(positions, i)
			values = append(values, f)
		}
	}

	out := make([]table.Value, len(cells))
	if len(values) == 0 {
		return out, nil
	}

	var groups []int
	switch req.Method {
	case table.DiscretizeEqualWidth:
		groups = EqualWidth(values, req.GroupCount)
	case table.DiscretizeEqualFrequency:
		groups = EqualFrequency(values, req.GroupCount)
	case table.DiscretizeKMeans:
		groups = KMeans(values, req.GroupCount, d.maxIterations)
	default:
		return nil, errors.InvalidInput("unknown discretization method " + string(req.Method))
	}

	for j, pos := range positions {
		out[pos] = table.Num(float64(groups[j]))
	}
	return out, nil
}

// EqualWidth splits [min, max] into k bins of equal width; the maximum falls in the last bin
func EqualWidth(values []float64, k int) []int {
	out := make([]int, len(values))
	lo, hi := floats.Min(values), floats.Max(values)
	width := (hi - lo) / float64(k)
	if width == 0 {
		return out
	}
	for i, v := range values {
		out[i] = clamp(int(math.Floor((v-lo)/width)), k)
	}
	return out
}

// EqualFrequency assigns floor(rank / (n / k)) where rank is the first sorted position >= value
func EqualFrequency(values []float64, k int) []int {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	per := float64(len(sorted)) / float64(k)

	out := make([]int, len(values))
	for i, v := range values {
		rank := sort.SearchFloat64s(sorted, v)
		out[i] = clamp(int(math.Floor(float64(rank)/per)), k)
	}
	return out
}

// KMeans clusters scalar values into k groups with Lloyd's algorithm. Centroids start
// at evenly spaced order statistics and labels are numbered by ascending centroid.
func KMeans(values []float64, k, maxIterations int) []int {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)

	centroids := make([]float64, k)
	for j := range centroids {
		centroids[j] = sorted[(2*j+1)*n/(2*k)]
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, v := range values {
			if c := closest(centroids, v); c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		members := make([][]float64, k)
		for i, v := range values {
			members[labels[i]] = append(members[labels[i]], v)
		}
		for j := range centroids {
			// an empty cluster keeps its previous centroid
			if len(members[j]) > 0 {
				centroids[j] = stat.Mean(members[j], nil)
			}
		}
	}

	order := make([]int, k)
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool { return centroids[order[a]] < centroids[order[b]] })
	rename := make([]int, k)
	for rank, j := range order {
		rename[j] = rank
	}

	out := make([]int, n)
	for i := range labels {
		out[i] = rename[labels[i]]
	}
	return out
}

func closest(centroids []float64, v float64) int {
	best := 0
	bestDist := math.Abs(v - centroids[0])
	for j := 1; j < len(centroids); j++ {
		if d := math.Abs(v - centroids[j]); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

func clamp(idx, k int) int {
	if idx >= k {
		return k - 1
	}
	if idx < 0 {
		return 0
	}
	return idx
}

package interpolation

import (
	"math"
	"sort"

	"statbench/domain/table"
	"statbench/internal/errors"

	"github.com/montanaflynn/stats"
)

// Mean is the arithmetic mean of the present values
func Mean(values []float64) (float64, error) {
	return stats.Mean(values)
}

// Median is the 50th percentile with linear interpolation between the middle order statistics
func Median(values []float64) (float64, error) {
	return stats.Median(values)
}

type node struct {
	idx int
	x   float64
	y   table.Value
}

// Nearest copies, for each absent target, the target of the row whose reference
// value is numerically closest. Ties go to the smallest row index. Rows whose own
// reference value is not numeric stay absent.
func Nearest(column string, target, reference []table.Value) (map[int]table.Value, error) {
	var donors []node
	for idx, v := range target {
		if v.IsAbsent() {
			continue
		}
		if x, ok := table.FiniteNumber(reference[idx]); ok {
			donors = append(donors, node{idx: idx, x: x, y: v})
		}
	}
	if len(donors) == 0 {
		return nil, errors.InsufficientReferenceData(column, "no present values with a numeric reference")
	}

	out := make(map[int]table.Value)
	for idx, v := range target {
		if v.IsPresent() {
			continue
		}
		x, ok := table.FiniteNumber(reference[idx])
		if !ok {
			continue
		}
		best := 0
		bestDist := math.Abs(donors[0].x - x)
		for j := 1; j < len(donors); j++ {
			if d := math.Abs(donors[j].x - x); d < bestDist {
				best, bestDist = j, d
			}
		}
		out[idx] = donors[best].y
	}
	return out, nil
}

// Lagrange evaluates the interpolating polynomial through the (reference, target)
// pairs of present rows at each absent row's reference value, using the barycentric
// form. Only the maxPoints nodes nearest the evaluation point are used. Duplicate
// reference values keep the first row. Non-finite results stay absent.
func Lagrange(column string, target, reference []table.Value, maxPoints int) (map[int]table.Value, error) {
	var nodes []node
	seen := make(map[float64]bool)
	for idx, v := range target {
		y, ok := table.FiniteNumber(v)
		if !ok {
			continue
		}
		x, ok := table.FiniteNumber(reference[idx])
		if !ok || seen[x] {
			continue
		}
		seen[x] = true
		nodes = append(nodes, node{idx: idx, x: x, y: table.Num(y)})
	}
	if len(nodes) == 0 {
		return nil, errors.InsufficientReferenceData(column, "no numeric (reference, value) pairs")
	}

	out := make(map[int]table.Value)
	for idx, v := range target {
		if v.IsPresent() {
			continue
		}
		x, ok := table.FiniteNumber(reference[idx])
		if !ok {
			continue
		}
		y := barycentric(nearestNodes(nodes, x, maxPoints), x)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		out[idx] = table.Num(y)
	}
	return out, nil
}

// nearestNodes returns up to limit nodes closest to x, ties broken by row index
func nearestNodes(nodes []node, x float64, limit int) []node {
	if len(nodes) <= limit {
		return nodes
	}
	sorted := append([]node(nil), nodes...)
	sort.SliceStable(sorted, func(a, b int) bool {
		da, db := math.Abs(sorted[a].x-x), math.Abs(sorted[b].x-x)
		if da != db {
			return da < db
		}
		return sorted[a].idx < sorted[b].idx
	})
	return sorted[:limit]
}

// barycentric evaluates the second (true) barycentric formula
func barycentric(nodes []node, x float64) float64 {
	n := len(nodes)
	weights := make([]float64, n)
	for j := 0; j < n; j++ {
		if nodes[j].x == x {
			return nodes[j].y.Float()
		}
		w := 1.0
		for k := 0; k < n; k++ {
			if k != j {
				w *= nodes[j].x - nodes[k].x
			}
		}
		weights[j] = 1 / w
	}

	var num, den float64
	for j := 0; j < n; j++ {
		t := weights[j] / (x - nodes[j].x)
		num += t * nodes[j].y.Float()
		den += t
	}
	return num / den
}

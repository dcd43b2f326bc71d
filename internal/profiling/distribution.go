package profiling

import (
	"sort"

	"statbench/domain/table"

	"github.com/montanaflynn/stats"
)

// Summarize computes the descriptive statistics of a numeric column
func Summarize(data []float64) (*table.Summary, error) {
	mean, err := stats.Mean(data)
	if err != nil {
		return nil, err
	}

	// population standard deviation (divide by n)
	stdDev, err := stats.StandardDeviationPopulation(data)
	if err != nil {
		return nil, err
	}

	min, err := stats.Min(data)
	if err != nil {
		return nil, err
	}

	max, err := stats.Max(data)
	if err != nil {
		return nil, err
	}

	mode, err := smallestMode(data, min)
	if err != nil {
		return nil, err
	}

	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)

	return &table.Summary{
		Min:  min,
		Max:  max,
		Mean: mean,
		Std:  stdDev,
		Q1:   Quantile(sorted, 0.25),
		Q2:   Quantile(sorted, 0.5),
		Q3:   Quantile(sorted, 0.75),
		Mode: mode,
	}, nil
}

// smallestMode returns the smallest of the most frequent values. stats.Mode reports
// no mode when every value occurs equally often; the minimum is then the answer.
func smallestMode(data []float64, min float64) (float64, error) {
	modes, err := stats.Mode(data)
	if err != nil {
		return 0, err
	}
	if len(modes) == 0 {
		return min, nil
	}
	return modes[0], nil
}

// Quantile estimates the p-quantile of sorted data by linear interpolation between
// order statistics at h = (n-1)p.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := int(h)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

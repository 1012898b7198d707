package domain

import (
	"math"
	"slices"
)

// Quantile returns the q-th quantile of values using linear interpolation
// between the closest ranks, h = (n-1)q. NaN inputs are ignored. It returns
// NaN for an empty input.
func Quantile(values []float64, q float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	slices.Sort(sorted)

	h := float64(len(sorted)-1) * q
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

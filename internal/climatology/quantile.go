package climatology

import (
	"fmt"
	"math"
	"sort"
)

// Quantile returns the empirical q-th quantile of a sorted (ascending)
// sample using linear interpolation between order statistics, the same
// estimator standard array libraries default to.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	h := q * float64(n-1)
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Terciles returns the 1/3 and 2/3 quantiles of an unsorted sample.
// The result satisfies low <= high by construction.
func Terciles(sample []float64) (low, high float64, err error) {
	if len(sample) == 0 {
		return 0, 0, fmt.Errorf("terciles: empty sample")
	}
	sorted := append([]float64(nil), sample...)
	sort.Float64s(sorted)
	return Quantile(sorted, 1.0/3.0), Quantile(sorted, 2.0/3.0), nil
}

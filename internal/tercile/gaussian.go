package tercile

import (
	"math"

	"github.com/coastwatch/tercile/internal/field"
)

// GaussianFit approximates the ensemble spread per (window, cell) with
// a normal distribution fitted from the member sample. Mean and Std are
// window-major: Mean[w*Cells+c].
type GaussianFit struct {
	Windows []int
	Cells   int
	Mean    []float64
	Std     []float64
}

// EstimateGaussian reduces the member axis of a lead-binned field to a
// per-cell, per-window (mean, sample standard deviation) pair. The
// sample (n-1) estimator is used; a single-member ensemble gets
// std = 0 rather than an error or NaN.
func EstimateGaussian(f *field.Field) (*GaussianFit, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	nw := len(f.Leads)
	fit := &GaussianFit{
		Windows: append([]int(nil), f.Leads...),
		Cells:   f.Cells,
		Mean:    make([]float64, nw*f.Cells),
		Std:     make([]float64, nw*f.Cells),
	}

	n := float64(f.Members)
	for w := 0; w < nw; w++ {
		for c := 0; c < f.Cells; c++ {
			var sum float64
			for m := 0; m < f.Members; m++ {
				sum += f.At(m, w, c)
			}
			mean := sum / n

			var ss float64
			for m := 0; m < f.Members; m++ {
				d := f.At(m, w, c) - mean
				ss += d * d
			}
			std := 0.0
			if f.Members > 1 {
				std = math.Sqrt(ss / (n - 1))
			}

			fit.Mean[w*f.Cells+c] = mean
			fit.Std[w*f.Cells+c] = std
		}
	}
	return fit, nil
}

// CDF evaluates the fitted normal cumulative distribution at x for one
// (window, cell). Zero spread degenerates to a step at the mean: the
// distribution has all its mass there, so CDF is 0 below the mean and
// 1 at or above it.
func (g *GaussianFit) CDF(w, c int, x float64) float64 {
	mean := g.Mean[w*g.Cells+c]
	std := g.Std[w*g.Cells+c]
	if std == 0 {
		if x < mean {
			return 0
		}
		return 1
	}
	return 0.5 * (1 + math.Erf((x-mean)/(std*math.Sqrt2)))
}

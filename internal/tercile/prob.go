package tercile

import "fmt"

// Categories is the fixed category axis, in stacking order: lower,
// middle, upper. The labels double as the sign convention for the
// dominant-category summary.
var Categories = [3]int{-1, 0, 1}

// Probabilities holds the three tercile category probabilities per
// (window, cell). Data is indexed by category position (the Categories
// order), then window-major within each category.
type Probabilities struct {
	Windows []int
	Cells   int
	Data    [3][]float64
}

// At returns the probability for category position k at (window, cell).
func (p *Probabilities) At(k, w, c int) float64 {
	return p.Data[k][w*p.Cells+c]
}

// ComputeProbabilities evaluates the fitted normal CDF at the
// climatological boundaries:
//
//	lower  = CDF(f_lowmid)
//	upper  = 1 - CDF(f_midhigh)
//	middle = 1 - lower - upper
//
// so the three always sum to 1. No clamping is applied: if the
// boundaries are non-monotonic the middle probability falls outside
// [0,1] rather than failing.
func ComputeProbabilities(fit *GaussianFit, b *Boundary) (*Probabilities, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if len(b.Leads) != len(fit.Windows) || b.Cells != fit.Cells {
		return nil, fmt.Errorf("tercile: boundary shape %dx%d does not match fit %dx%d",
			len(b.Leads), b.Cells, len(fit.Windows), fit.Cells)
	}

	nw := len(fit.Windows)
	p := &Probabilities{
		Windows: append([]int(nil), fit.Windows...),
		Cells:   fit.Cells,
	}
	for k := range p.Data {
		p.Data[k] = make([]float64, nw*fit.Cells)
	}

	for w := 0; w < nw; w++ {
		for c := 0; c < fit.Cells; c++ {
			i := w*fit.Cells + c
			lower := fit.CDF(w, c, b.Lower[i])
			upper := 1 - fit.CDF(w, c, b.Upper[i])
			p.Data[0][i] = lower
			p.Data[1][i] = 1 - lower - upper
			p.Data[2][i] = upper
		}
	}
	return p, nil
}

// Dominant reduces the three probabilities per (window, cell) to one
// signed scalar: the category label times the maximum probability.
// Negative means lower tercile dominant, positive upper, and a middle
// maximum yields exactly 0. Ties break deterministically to the
// first-occurring maximum over the [-1, 0, 1] label order.
func (p *Probabilities) Dominant() []float64 {
	out := make([]float64, len(p.Windows)*p.Cells)
	for i := range out {
		best := 0
		for k := 1; k < len(Categories); k++ {
			if p.Data[k][i] > p.Data[best][i] {
				best = k
			}
		}
		out[i] = float64(Categories[best]) * p.Data[best][i]
	}
	return out
}

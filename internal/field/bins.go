package field

import (
	"fmt"
	"math"
)

// LeadBinSpec partitions a monthly lead axis into coarser forecast
// windows. Edges must be strictly increasing; window i covers the
// half-open interval (edges[i], edges[i+1]] and is labeled i. A lead
// value outside every interval (for example a lead equal to the first
// edge) belongs to no window and is dropped from the aggregation.
//
// The spec used at inference time must match the one used when the
// boundary dataset was built. That is not validated here: a mismatch
// produces miscalibrated probabilities, not an error.
type LeadBinSpec []int

// DefaultLeadBins returns a fresh copy of the seasonal-mean binning
// (four 3-month windows). Callers get their own slice, never a shared
// mutable default.
func DefaultLeadBins() LeadBinSpec {
	return LeadBinSpec{0, 3, 6, 9, 12}
}

func (s LeadBinSpec) Validate() error {
	if len(s) < 2 {
		return fmt.Errorf("lead bins: %d edges, want at least 2", len(s))
	}
	for i := 1; i < len(s); i++ {
		if s[i] <= s[i-1] {
			return fmt.Errorf("lead bins: edges not strictly increasing at %d (%d <= %d)", i, s[i], s[i-1])
		}
	}
	return nil
}

// Windows is the number of lead windows the spec defines.
func (s LeadBinSpec) Windows() int {
	return len(s) - 1
}

// WindowOf maps a lead value to its window label, or false if the lead
// falls outside every interval.
func (s LeadBinSpec) WindowOf(lead int) (int, bool) {
	for i := 0; i < len(s)-1; i++ {
		if lead > s[i] && lead <= s[i+1] {
			return i, true
		}
	}
	return 0, false
}

// windowIndex groups lead-axis positions by window. Positions whose
// lead value belongs to no window appear nowhere in the result.
func (s LeadBinSpec) windowIndex(leads []int) [][]int {
	idx := make([][]int, s.Windows())
	for pos, lead := range leads {
		if w, ok := s.WindowOf(lead); ok {
			idx[w] = append(idx[w], pos)
		}
	}
	return idx
}

// BinLeads aggregates the lead axis into forecast windows by averaging
// the leads inside each window, per member and cell. A nil spec is the
// pass-through case: the axis is relabeled 0..n-1 with no aggregation.
// A window containing no leads yields NaN.
func (f *Field) BinLeads(spec LeadBinSpec) (*Field, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if spec == nil {
		out := &Field{
			Members: f.Members,
			Leads:   windowLabels(len(f.Leads)),
			Cells:   f.Cells,
			Data:    append([]float64(nil), f.Data...),
		}
		return out, nil
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	idx := spec.windowIndex(f.Leads)
	out := New(f.Members, windowLabels(spec.Windows()), f.Cells)
	for m := 0; m < f.Members; m++ {
		for w, positions := range idx {
			for c := 0; c < f.Cells; c++ {
				out.Set(m, w, c, meanAt(f, m, positions, c))
			}
		}
	}
	return out, nil
}

func meanAt(f *Field, m int, positions []int, c int) float64 {
	if len(positions) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, l := range positions {
		sum += f.At(m, l, c)
	}
	return sum / float64(len(positions))
}

// BinSeries aggregates a lead-major series (one value per lead per
// cell) into windows the same way BinLeads does. It serves the
// boundary dataset, which has no member axis.
func BinSeries(leads []int, cells int, data []float64, spec LeadBinSpec) ([]int, []float64, error) {
	if len(data) != len(leads)*cells {
		return nil, nil, fmt.Errorf("bin series: %d values for %dx%d shape", len(data), len(leads), cells)
	}
	if spec == nil {
		return windowLabels(len(leads)), append([]float64(nil), data...), nil
	}
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}

	idx := spec.windowIndex(leads)
	out := make([]float64, spec.Windows()*cells)
	for w, positions := range idx {
		for c := 0; c < cells; c++ {
			if len(positions) == 0 {
				out[w*cells+c] = math.NaN()
				continue
			}
			var sum float64
			for _, l := range positions {
				sum += data[l*cells+c]
			}
			out[w*cells+c] = sum / float64(len(positions))
		}
	}
	return windowLabels(spec.Windows()), out, nil
}

func windowLabels(n int) []int {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}
	return labels
}

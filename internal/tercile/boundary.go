package tercile

import (
	"fmt"

	"github.com/coastwatch/tercile/internal/field"
)

// Boundary is the climatological tercile boundary dataset aligned to
// the forecast grid: per lead (or window, once binned), per cell, the
// value dividing lower from middle (f_lowmid) and middle from upper
// (f_midhigh). Lead-major layout: Lower[l*Cells+c].
//
// f_lowmid <= f_midhigh is an upstream invariant of the builder; it is
// not re-checked here. A violated boundary produces a middle
// probability outside [0,1] downstream.
type Boundary struct {
	Leads []int
	Cells int
	Lower []float64
	Upper []float64
}

func (b *Boundary) Validate() error {
	want := len(b.Leads) * b.Cells
	if len(b.Lower) != want || len(b.Upper) != want {
		return fmt.Errorf("boundary: %d/%d values for %dx%d shape, want %d",
			len(b.Lower), len(b.Upper), len(b.Leads), b.Cells, want)
	}
	return nil
}

// BinLeads aggregates the boundary lead axis into the same windows the
// forecast was binned into. The same spec must be used for both; that
// correspondence is the caller's responsibility.
func (b *Boundary) BinLeads(spec field.LeadBinSpec) (*Boundary, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	labels, lower, err := field.BinSeries(b.Leads, b.Cells, b.Lower, spec)
	if err != nil {
		return nil, fmt.Errorf("bin f_lowmid: %w", err)
	}
	_, upper, err := field.BinSeries(b.Leads, b.Cells, b.Upper, spec)
	if err != nil {
		return nil, fmt.Errorf("bin f_midhigh: %w", err)
	}
	return &Boundary{Leads: labels, Cells: b.Cells, Lower: lower, Upper: upper}, nil
}

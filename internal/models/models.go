package models

import "time"

// Dataset describes one hindcast archive file in the catalog: every
// initialization year of one variable for one initialization month.
type Dataset struct {
	ID        int64
	Variable  string
	InitMonth int
	Members   int
	Leads     []int
	Cells     int
	Source    string
	CreatedAt time.Time
}

// HindcastRow is a single archive value before import.
type HindcastRow struct {
	InitYear int
	Member   int
	Lead     int
	Cell     int
	Value    float64
}

// Hindcast holds a full archive slice in memory: every initialization
// year and ensemble member of one (variable, init month), on the raw
// lead axis. Data is init-major: Data[((i*Members+m)*len(Leads)+l)*Cells+c].
type Hindcast struct {
	InitYears []int
	Members   int
	Leads     []int
	Cells     int
	Data      []float64
}

// At returns the value for (init index, member, lead index, cell).
func (h *Hindcast) At(i, m, l, c int) float64 {
	return h.Data[((i*h.Members+m)*len(h.Leads)+l)*h.Cells+c]
}

// RegionMask is a named boolean spatial selector on the native grid.
type RegionMask struct {
	Name  string
	Cells []bool
}

// RegionBoundaries is the builder output for one region: the 1/3 and
// 2/3 quantiles of the pooled hindcast sample, per raw lead.
type RegionBoundaries struct {
	Region string
	Leads  []int
	Lower  []float64 // f_lowmid
	Upper  []float64 // f_midhigh
}

package climatology

import (
	"fmt"

	"github.com/coastwatch/tercile/internal/models"
)

// RegionalMean collapses the spatial axis of a hindcast archive to the
// area-weighted mean over the masked cells, independently per
// (initialization, member, lead): sum(v*mask*area) / sum(mask*area).
// The result is init-major: out[(i*Members+m)*len(Leads)+l].
func RegionalMean(h *models.Hindcast, mask models.RegionMask, area []float64) ([]float64, error) {
	if len(mask.Cells) != h.Cells {
		return nil, fmt.Errorf("region %s: mask covers %d cells, grid has %d", mask.Name, len(mask.Cells), h.Cells)
	}
	if len(area) != h.Cells {
		return nil, fmt.Errorf("region %s: %d area weights, grid has %d cells", mask.Name, len(area), h.Cells)
	}

	var totalWeight float64
	for c, in := range mask.Cells {
		if in {
			totalWeight += area[c]
		}
	}
	if totalWeight <= 0 {
		return nil, fmt.Errorf("region %s: selects no area", mask.Name)
	}

	inits := len(h.InitYears)
	leads := len(h.Leads)
	out := make([]float64, inits*h.Members*leads)
	for i := 0; i < inits; i++ {
		for m := 0; m < h.Members; m++ {
			for l := 0; l < leads; l++ {
				var sum float64
				for c, in := range mask.Cells {
					if in {
						sum += h.At(i, m, l, c) * area[c]
					}
				}
				out[(i*h.Members+m)*leads+l] = sum / totalWeight
			}
		}
	}
	return out, nil
}

// poolByLead flattens the (initialization, member) axes of a regional
// mean series into one sample per lead.
func poolByLead(series []float64, inits, members, leads int) [][]float64 {
	pools := make([][]float64, leads)
	for l := range pools {
		pools[l] = make([]float64, 0, inits*members)
	}
	for i := 0; i < inits; i++ {
		for m := 0; m < members; m++ {
			for l := 0; l < leads; l++ {
				pools[l] = append(pools[l], series[(i*members+m)*leads+l])
			}
		}
	}
	return pools
}

// BuildRegion computes the climatological tercile boundaries for one
// region: area-weighted regional mean, pool every (initialization,
// member) pair per raw lead, then take the empirical 1/3 and 2/3
// quantiles of each pool. Lead-window aggregation is deliberately left
// to the consumer, mirroring the forecast-side binning contract.
func BuildRegion(h *models.Hindcast, mask models.RegionMask, area []float64) (models.RegionBoundaries, error) {
	series, err := RegionalMean(h, mask, area)
	if err != nil {
		return models.RegionBoundaries{}, err
	}

	rb := models.RegionBoundaries{
		Region: mask.Name,
		Leads:  append([]int(nil), h.Leads...),
		Lower:  make([]float64, len(h.Leads)),
		Upper:  make([]float64, len(h.Leads)),
	}
	for l, pool := range poolByLead(series, len(h.InitYears), h.Members, len(h.Leads)) {
		low, high, err := Terciles(pool)
		if err != nil {
			return models.RegionBoundaries{}, fmt.Errorf("region %s lead %d: %w", mask.Name, h.Leads[l], err)
		}
		rb.Lower[l] = low
		rb.Upper[l] = high
	}
	return rb, nil
}

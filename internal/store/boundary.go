package store

import (
	"fmt"

	"github.com/coastwatch/tercile/internal/models"
	"github.com/coastwatch/tercile/internal/tercile"
)

// ReplaceRegionalBoundaries persists the builder output for one archive
// dataset in a single transaction. A lock held by a concurrent writer
// surfaces as ErrLocked so the caller can skip and continue.
func (s *Store) ReplaceRegionalBoundaries(datasetID int64, provenance string, regions []models.RegionBoundaries) error {
	tx, err := s.db.Begin()
	if err != nil {
		return wrapLocked(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM regional_boundaries WHERE dataset_id = ?`, datasetID); err != nil {
		return wrapLocked(err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO regional_boundaries (dataset_id, region, lead, f_lowmid, f_midhigh, provenance)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return wrapLocked(err)
	}
	defer stmt.Close()

	for _, rb := range regions {
		for l, lead := range rb.Leads {
			if _, err := stmt.Exec(datasetID, rb.Region, lead, rb.Lower[l], rb.Upper[l], provenance); err != nil {
				return wrapLocked(err)
			}
		}
	}
	return wrapLocked(tx.Commit())
}

// RegionalBoundaries loads the builder output for one dataset, ordered
// by region then lead.
func (s *Store) RegionalBoundaries(datasetID int64) ([]models.RegionBoundaries, error) {
	rows, err := s.db.Query(`
		SELECT region, lead, f_lowmid, f_midhigh
		FROM regional_boundaries
		WHERE dataset_id = ?
		ORDER BY region, lead
	`, datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RegionBoundaries
	var current *models.RegionBoundaries
	for rows.Next() {
		var region string
		var lead int
		var low, high float64
		if err := rows.Scan(&region, &lead, &low, &high); err != nil {
			return nil, err
		}
		if current == nil || current.Region != region {
			out = append(out, models.RegionBoundaries{Region: region})
			current = &out[len(out)-1]
		}
		current.Leads = append(current.Leads, lead)
		current.Lower = append(current.Lower, low)
		current.Upper = append(current.Upper, high)
	}
	return out, rows.Err()
}

// ReplaceGriddedBoundary replaces the cell-aligned boundary dataset
// consumed at inference time for one (variable, init month).
func (s *Store) ReplaceGriddedBoundary(variable string, initMonth int, b *tercile.Boundary) error {
	if err := b.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM gridded_boundaries WHERE variable = ? AND init_month = ?`, variable, initMonth); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO gridded_boundaries (variable, init_month, lead, cell, f_lowmid, f_midhigh)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for l, lead := range b.Leads {
		for c := 0; c < b.Cells; c++ {
			i := l*b.Cells + c
			if _, err := stmt.Exec(variable, initMonth, lead, c, b.Lower[i], b.Upper[i]); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// GriddedBoundary loads the boundary dataset aligned to a forecast
// grid of the given lead axis and cell count.
func (s *Store) GriddedBoundary(variable string, initMonth int, leads []int, cells int) (*tercile.Boundary, error) {
	b := &tercile.Boundary{
		Leads: append([]int(nil), leads...),
		Cells: cells,
		Lower: make([]float64, len(leads)*cells),
		Upper: make([]float64, len(leads)*cells),
	}
	leadPos := leadPositions(leads)

	rows, err := s.db.Query(`
		SELECT lead, cell, f_lowmid, f_midhigh
		FROM gridded_boundaries
		WHERE variable = ? AND init_month = ?
	`, variable, initMonth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var lead, cell int
		var low, high float64
		if err := rows.Scan(&lead, &cell, &low, &high); err != nil {
			return nil, err
		}
		l, ok := leadPos[lead]
		if !ok {
			return nil, fmt.Errorf("boundary %s i%d: lead %d not on the forecast axis", variable, initMonth, lead)
		}
		if cell < 0 || cell >= cells {
			return nil, fmt.Errorf("boundary %s i%d: cell %d outside %d-cell grid", variable, initMonth, cell, cells)
		}
		i := l*cells + cell
		b.Lower[i] = low
		b.Upper[i] = high
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("boundary %s i%d: %w", variable, initMonth, ErrNotFound)
	}
	if want := len(leads) * cells; n != want {
		return nil, fmt.Errorf("boundary %s i%d: %d values, want %d", variable, initMonth, n, want)
	}
	return b, nil
}

func wrapLocked(err error) error {
	if isLocked(err) {
		return fmt.Errorf("%v: %w", err, ErrLocked)
	}
	return err
}

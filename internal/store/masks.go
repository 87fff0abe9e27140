package store

import (
	"fmt"

	"github.com/coastwatch/tercile/internal/models"
)

// ReplaceRegionMask replaces the cell membership of one named region.
func (s *Store) ReplaceRegionMask(region string, cells []int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM region_masks WHERE region = ?`, region); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO region_masks (region, cell) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range cells {
		if _, err := stmt.Exec(region, c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RegionMasks loads every named mask as a boolean selector on a grid
// of the given cell count. A mask referencing a cell off the grid is a
// shape error, not silently clipped.
func (s *Store) RegionMasks(cells int) ([]models.RegionMask, error) {
	rows, err := s.db.Query(`SELECT region, cell FROM region_masks ORDER BY region, cell`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var masks []models.RegionMask
	var current *models.RegionMask
	for rows.Next() {
		var region string
		var cell int
		if err := rows.Scan(&region, &cell); err != nil {
			return nil, err
		}
		if cell < 0 || cell >= cells {
			return nil, fmt.Errorf("region %s: cell %d outside %d-cell grid", region, cell, cells)
		}
		if current == nil || current.Name != region {
			masks = append(masks, models.RegionMask{Name: region, Cells: make([]bool, cells)})
			current = &masks[len(masks)-1]
		}
		current.Cells[cell] = true
	}
	return masks, rows.Err()
}

// ReplaceCellAreas replaces the per-cell area weights.
func (s *Store) ReplaceCellAreas(areas []float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cell_areas`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO cell_areas (cell, area) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for c, a := range areas {
		if _, err := stmt.Exec(c, a); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CellAreas loads the per-cell area weights for a grid of the given
// cell count.
func (s *Store) CellAreas(cells int) ([]float64, error) {
	rows, err := s.db.Query(`SELECT cell, area FROM cell_areas`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	areas := make([]float64, cells)
	n := 0
	for rows.Next() {
		var c int
		var a float64
		if err := rows.Scan(&c, &a); err != nil {
			return nil, err
		}
		if c < 0 || c >= cells {
			return nil, fmt.Errorf("cell areas: cell %d outside %d-cell grid", c, cells)
		}
		areas[c] = a
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if n != cells {
		return nil, fmt.Errorf("cell areas: %d weights for %d-cell grid", n, cells)
	}
	return areas, nil
}

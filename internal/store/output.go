package store

import (
	"fmt"

	"github.com/coastwatch/tercile/internal/tercile"
)

// SaveForecastOutput persists the inference artifact: the stacked
// tercile probabilities and the signed dominant-category field for one
// initialization.
func (s *Store) SaveForecastOutput(variable string, year, month int, probs *tercile.Probabilities, max []float64) error {
	if len(max) != len(probs.Windows)*probs.Cells {
		return fmt.Errorf("output %s %d-%02d: %d max values for %dx%d shape",
			variable, year, month, len(max), len(probs.Windows), probs.Cells)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM tercile_prob WHERE variable = ? AND init_year = ? AND init_month = ?
	`, variable, year, month); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		DELETE FROM tercile_prob_max WHERE variable = ? AND init_year = ? AND init_month = ?
	`, variable, year, month); err != nil {
		return err
	}

	probStmt, err := tx.Prepare(`
		INSERT INTO tercile_prob (variable, init_year, init_month, window, cell, category, prob)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer probStmt.Close()
	maxStmt, err := tx.Prepare(`
		INSERT INTO tercile_prob_max (variable, init_year, init_month, window, cell, value)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer maxStmt.Close()

	for w, window := range probs.Windows {
		for c := 0; c < probs.Cells; c++ {
			for k, label := range tercile.Categories {
				if _, err := probStmt.Exec(variable, year, month, window, c, label, probs.At(k, w, c)); err != nil {
					return err
				}
			}
			if _, err := maxStmt.Exec(variable, year, month, window, c, max[w*probs.Cells+c]); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// ForecastOutputMax reads back the dominant-category field for one
// initialization, window-major.
func (s *Store) ForecastOutputMax(variable string, year, month int) ([]float64, error) {
	rows, err := s.db.Query(`
		SELECT value FROM tercile_prob_max
		WHERE variable = ? AND init_year = ? AND init_month = ?
		ORDER BY window, cell
	`, variable, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

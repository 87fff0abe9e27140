package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/coastwatch/tercile/internal/field"
	"github.com/coastwatch/tercile/internal/models"
)

// ImportHindcast replaces the archive dataset for (variable, init
// month) with the given rows. Shape metadata (members, lead axis, cell
// count) is derived from the rows themselves.
func (s *Store) ImportHindcast(variable string, initMonth int, source string, rows []models.HindcastRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("import %s i%d: no rows", variable, initMonth)
	}

	members := 0
	cells := 0
	leadSet := map[int]bool{}
	for _, r := range rows {
		if r.Member+1 > members {
			members = r.Member + 1
		}
		if r.Cell+1 > cells {
			cells = r.Cell + 1
		}
		leadSet[r.Lead] = true
	}
	leads := make([]int, 0, len(leadSet))
	for l := range leadSet {
		leads = append(leads, l)
	}
	sort.Ints(leads)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM datasets WHERE variable = ? AND init_month = ?`, variable, initMonth); err != nil {
		return fmt.Errorf("clear dataset: %w", err)
	}
	res, err := tx.Exec(`
		INSERT INTO datasets (variable, init_month, members, leads, cells, source)
		VALUES (?, ?, ?, ?, ?, ?)
	`, variable, initMonth, members, encodeLeads(leads), cells, source)
	if err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO hindcast_values (dataset_id, init_year, member, lead, cell, value)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(id, r.InitYear, r.Member, r.Lead, r.Cell, r.Value); err != nil {
			return fmt.Errorf("insert value: %w", err)
		}
	}

	return tx.Commit()
}

// ListDatasets returns every catalogued archive dataset for a variable,
// ordered by initialization month.
func (s *Store) ListDatasets(variable string) ([]models.Dataset, error) {
	rows, err := s.db.Query(`
		SELECT id, variable, init_month, members, leads, cells, source, created_at
		FROM datasets
		WHERE variable = ?
		ORDER BY init_month
	`, variable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDatasets(rows)
}

// FindDataset resolves (variable, initialization year, month) to
// exactly one archive dataset. Zero matches is ErrNotFound, more than
// one is ErrAmbiguousMatch: a duplicate catalogue entry is a data
// problem to surface, never to resolve by picking one.
func (s *Store) FindDataset(variable string, year, month int) (*models.Dataset, error) {
	rows, err := s.db.Query(`
		SELECT id, variable, init_month, members, leads, cells, source, created_at
		FROM datasets
		WHERE variable = ? AND init_month = ?
	`, variable, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches, err := scanDatasets(rows)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%s i%d: %w", variable, month, ErrNotFound)
	}
	if len(matches) > 1 {
		return nil, fmt.Errorf("%s i%d: %d datasets: %w", variable, month, len(matches), ErrAmbiguousMatch)
	}

	ds := matches[0]
	var exists bool
	err = s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM hindcast_values WHERE dataset_id = ? AND init_year = ?)
	`, ds.ID, year).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s %d-%02d: initialization not in archive: %w", variable, year, month, ErrNotFound)
	}
	return &ds, nil
}

// LoadField materializes the forecast field for one initialization year
// of a dataset.
func (s *Store) LoadField(ds *models.Dataset, year int) (*field.Field, error) {
	f := field.New(ds.Members, ds.Leads, ds.Cells)
	leadPos := leadPositions(ds.Leads)

	rows, err := s.db.Query(`
		SELECT member, lead, cell, value
		FROM hindcast_values
		WHERE dataset_id = ? AND init_year = ?
	`, ds.ID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var m, lead, c int
		var v float64
		if err := rows.Scan(&m, &lead, &c, &v); err != nil {
			return nil, err
		}
		l, ok := leadPos[lead]
		if !ok {
			return nil, fmt.Errorf("dataset %d: lead %d not on the catalogued axis", ds.ID, lead)
		}
		f.Set(m, l, c, v)
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if want := ds.Members * len(ds.Leads) * ds.Cells; n != want {
		return nil, fmt.Errorf("dataset %d year %d: %d values, want %d", ds.ID, year, n, want)
	}
	return f, nil
}

// LoadHindcast materializes the full archive slice for a dataset:
// every initialization year, on the raw lead axis.
func (s *Store) LoadHindcast(datasetID int64) (*models.Hindcast, error) {
	ds, err := s.datasetByID(datasetID)
	if err != nil {
		return nil, err
	}

	var years []int
	yrows, err := s.db.Query(`
		SELECT DISTINCT init_year FROM hindcast_values WHERE dataset_id = ? ORDER BY init_year
	`, datasetID)
	if err != nil {
		return nil, err
	}
	defer yrows.Close()
	for yrows.Next() {
		var y int
		if err := yrows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	if err := yrows.Err(); err != nil {
		return nil, err
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("dataset %d: %w", datasetID, ErrNotFound)
	}

	yearPos := make(map[int]int, len(years))
	for i, y := range years {
		yearPos[y] = i
	}
	leadPos := leadPositions(ds.Leads)

	h := &models.Hindcast{
		InitYears: years,
		Members:   ds.Members,
		Leads:     append([]int(nil), ds.Leads...),
		Cells:     ds.Cells,
		Data:      make([]float64, len(years)*ds.Members*len(ds.Leads)*ds.Cells),
	}

	rows, err := s.db.Query(`
		SELECT init_year, member, lead, cell, value
		FROM hindcast_values
		WHERE dataset_id = ?
	`, datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var year, m, lead, c int
		var v float64
		if err := rows.Scan(&year, &m, &lead, &c, &v); err != nil {
			return nil, err
		}
		i := yearPos[year]
		l, ok := leadPos[lead]
		if !ok {
			return nil, fmt.Errorf("dataset %d: lead %d not on the catalogued axis", datasetID, lead)
		}
		h.Data[((i*h.Members+m)*len(h.Leads)+l)*h.Cells+c] = v
	}
	return h, rows.Err()
}

func (s *Store) datasetByID(id int64) (*models.Dataset, error) {
	row := s.db.QueryRow(`
		SELECT id, variable, init_month, members, leads, cells, source, created_at
		FROM datasets WHERE id = ?
	`, id)
	ds, err := scanDataset(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dataset %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (*models.Dataset, error) {
	var ds models.Dataset
	var leads string
	var source sql.NullString
	if err := row.Scan(&ds.ID, &ds.Variable, &ds.InitMonth, &ds.Members, &leads, &ds.Cells, &source, &ds.CreatedAt); err != nil {
		return nil, err
	}
	ds.Source = source.String
	var err error
	ds.Leads, err = decodeLeads(leads)
	if err != nil {
		return nil, fmt.Errorf("dataset %d: %w", ds.ID, err)
	}
	return &ds, nil
}

func scanDatasets(rows *sql.Rows) ([]models.Dataset, error) {
	var out []models.Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ds)
	}
	return out, rows.Err()
}

func leadPositions(leads []int) map[int]int {
	pos := make(map[int]int, len(leads))
	for i, l := range leads {
		pos[l] = i
	}
	return pos
}

func encodeLeads(leads []int) string {
	parts := make([]string, len(leads))
	for i, l := range leads {
		parts[i] = strconv.Itoa(l)
	}
	return strings.Join(parts, ",")
}

func decodeLeads(enc string) ([]int, error) {
	parts := strings.Split(enc, ",")
	leads := make([]int, 0, len(parts))
	for _, p := range parts {
		l, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("lead axis %q: %w", enc, err)
		}
		leads = append(leads, l)
	}
	return leads, nil
}

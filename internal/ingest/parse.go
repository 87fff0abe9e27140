package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"

	"github.com/coastwatch/tercile/internal/models"
	"github.com/coastwatch/tercile/internal/tercile"
)

// Archive files follow the upstream hindcast naming:
// <variable>_forecasts_i<month>.csv for hindcast values and
// <variable>_quantiles_i<month>.csv for precomputed gridded tercile
// boundaries.
var (
	archiveNameRe  = regexp.MustCompile(`^([a-z][a-z0-9]*)_forecasts_i(\d{1,2})\.csv$`)
	quantileNameRe = regexp.MustCompile(`^([a-z][a-z0-9]*)_quantiles_i(\d{1,2})\.csv$`)
)

// ParseArchiveName extracts (variable, init month) from an archive file
// name, or ok=false if the name is not an archive file.
func ParseArchiveName(name string) (variable string, initMonth int, ok bool) {
	return matchName(archiveNameRe, name)
}

// ParseQuantilesName extracts (variable, init month) from a gridded
// boundary file name.
func ParseQuantilesName(name string) (variable string, initMonth int, ok bool) {
	return matchName(quantileNameRe, name)
}

func matchName(re *regexp.Regexp, name string) (string, int, bool) {
	m := re.FindStringSubmatch(name)
	if m == nil {
		return "", 0, false
	}
	month, err := strconv.Atoi(m[2])
	if err != nil || month < 1 || month > 12 {
		return "", 0, false
	}
	return m[1], month, true
}

// ParseHindcastCSV reads archive rows from the upstream CSV layout:
// header init_year,member,lead,cell,value.
func ParseHindcastCSV(r io.Reader) ([]models.HindcastRow, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != 5 || header[0] != "init_year" {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var rows []models.HindcastRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row, err := parseHindcastRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data rows")
	}
	return rows, nil
}

func parseHindcastRecord(rec []string) (models.HindcastRow, error) {
	var row models.HindcastRow
	if len(rec) != 5 {
		return row, fmt.Errorf("%d fields, want 5", len(rec))
	}
	var err error
	if row.InitYear, err = strconv.Atoi(rec[0]); err != nil {
		return row, fmt.Errorf("init_year: %w", err)
	}
	if row.Member, err = strconv.Atoi(rec[1]); err != nil {
		return row, fmt.Errorf("member: %w", err)
	}
	if row.Lead, err = strconv.Atoi(rec[2]); err != nil {
		return row, fmt.Errorf("lead: %w", err)
	}
	if row.Cell, err = strconv.Atoi(rec[3]); err != nil {
		return row, fmt.Errorf("cell: %w", err)
	}
	if row.Value, err = strconv.ParseFloat(rec[4], 64); err != nil {
		return row, fmt.Errorf("value: %w", err)
	}
	return row, nil
}

// ParseGriddedBoundaryCSV reads a precomputed gridded tercile boundary
// file: header lead,cell,f_lowmid,f_midhigh, dense over leads x cells.
func ParseGriddedBoundaryCSV(r io.Reader) (*tercile.Boundary, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != 4 || header[0] != "lead" {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	type key struct{ lead, cell int }
	type pair struct{ lower, upper float64 }
	values := make(map[key]pair)
	leadSet := make(map[int]bool)
	maxCell := -1
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) != 4 {
			return nil, fmt.Errorf("line %d: %d fields, want 4", line, len(rec))
		}
		lead, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: lead: %w", line, err)
		}
		cell, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: cell: %w", line, err)
		}
		lower, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: f_lowmid: %w", line, err)
		}
		upper, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: f_midhigh: %w", line, err)
		}
		values[key{lead, cell}] = pair{lower, upper}
		leadSet[lead] = true
		if cell > maxCell {
			maxCell = cell
		}
	}
	if maxCell < 0 {
		return nil, fmt.Errorf("no data rows")
	}

	leads := make([]int, 0, len(leadSet))
	for l := range leadSet {
		leads = append(leads, l)
	}
	sort.Ints(leads)

	cells := maxCell + 1
	b := &tercile.Boundary{
		Leads: leads,
		Cells: cells,
		Lower: make([]float64, len(leads)*cells),
		Upper: make([]float64, len(leads)*cells),
	}
	for li, lead := range leads {
		for c := 0; c < cells; c++ {
			p, ok := values[key{lead, c}]
			if !ok {
				return nil, fmt.Errorf("lead %d cell %d missing from boundary file", lead, c)
			}
			b.Lower[li*cells+c] = p.lower
			b.Upper[li*cells+c] = p.upper
		}
	}
	return b, nil
}

// ParseRegionMasksCSV reads the static region definitions: header
// region,cell, one row per member cell.
func ParseRegionMasksCSV(r io.Reader) (map[string][]int, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != 2 || header[0] != "region" {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	masks := make(map[string][]int)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		cell, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: cell: %w", line, err)
		}
		masks[rec[0]] = append(masks[rec[0]], cell)
	}
	if len(masks) == 0 {
		return nil, fmt.Errorf("no regions")
	}
	return masks, nil
}

// ParseCellAreasCSV reads the static per-cell area weights: header
// cell,area, dense over the grid.
func ParseCellAreasCSV(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != 2 || header[0] != "cell" {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	byCell := make(map[int]float64)
	maxCell := -1
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		cell, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: cell: %w", line, err)
		}
		area, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: area: %w", line, err)
		}
		byCell[cell] = area
		if cell > maxCell {
			maxCell = cell
		}
	}
	if maxCell < 0 {
		return nil, fmt.Errorf("no cells")
	}

	areas := make([]float64, maxCell+1)
	for c := range areas {
		a, ok := byCell[c]
		if !ok {
			return nil, fmt.Errorf("cell %d missing from area file", c)
		}
		areas[c] = a
	}
	return areas, nil
}

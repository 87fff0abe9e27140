package store

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/coastwatch/tercile/internal/models"
	"github.com/coastwatch/tercile/internal/tercile"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

// archiveRows builds a dense archive: years x members x leads x cells,
// value = year + member + lead + cell for easy spot checks.
func archiveRows(years []int, members int, leads []int, cells int) []models.HindcastRow {
	var rows []models.HindcastRow
	for _, y := range years {
		for m := 0; m < members; m++ {
			for _, l := range leads {
				for c := 0; c < cells; c++ {
					rows = append(rows, models.HindcastRow{
						InitYear: y, Member: m, Lead: l, Cell: c,
						Value: float64(y%100) + float64(m) + float64(l) + float64(c),
					})
				}
			}
		}
	}
	return rows
}

func TestImportAndFindDataset(t *testing.T) {
	st := setupTestStore(t)
	rows := archiveRows([]int{1993, 1994}, 2, []int{1, 2, 3}, 4)
	if err := st.ImportHindcast("tos", 3, "test", rows); err != nil {
		t.Fatalf("ImportHindcast: %v", err)
	}

	ds, err := st.FindDataset("tos", 1993, 3)
	if err != nil {
		t.Fatalf("FindDataset: %v", err)
	}
	if ds.Variable != "tos" || ds.InitMonth != 3 {
		t.Errorf("dataset = %+v", ds)
	}
	if ds.Members != 2 || ds.Cells != 4 {
		t.Errorf("shape = %dx%d, want 2x4", ds.Members, ds.Cells)
	}
	if len(ds.Leads) != 3 || ds.Leads[0] != 1 || ds.Leads[2] != 3 {
		t.Errorf("leads = %v, want [1 2 3]", ds.Leads)
	}
}

func TestFindDatasetNotFound(t *testing.T) {
	st := setupTestStore(t)
	if err := st.ImportHindcast("tos", 3, "test", archiveRows([]int{1993}, 1, []int{1}, 1)); err != nil {
		t.Fatalf("ImportHindcast: %v", err)
	}

	tests := []struct {
		name     string
		variable string
		year     int
		month    int
	}{
		{"unknown variable", "tob", 1993, 3},
		{"unknown month", "tos", 1993, 6},
		{"year not in archive", "tos", 2001, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := st.FindDataset(tt.variable, tt.year, tt.month)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("FindDataset error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestFindDatasetAmbiguous(t *testing.T) {
	st := setupTestStore(t)
	if err := st.ImportHindcast("tos", 3, "test", archiveRows([]int{1993}, 1, []int{1}, 1)); err != nil {
		t.Fatalf("ImportHindcast: %v", err)
	}
	// A second catalog row for the same selection can only appear
	// through outside interference; the lookup must refuse to pick one.
	if _, err := st.db.Exec(`
		INSERT INTO datasets (variable, init_month, members, leads, cells, source)
		VALUES ('tos', 3, 1, '1', 1, 'duplicate')
	`); err != nil {
		t.Fatalf("insert duplicate: %v", err)
	}

	_, err := st.FindDataset("tos", 1993, 3)
	if !errors.Is(err, ErrAmbiguousMatch) {
		t.Fatalf("FindDataset error = %v, want ErrAmbiguousMatch", err)
	}
}

func TestImportReplacesDataset(t *testing.T) {
	st := setupTestStore(t)
	if err := st.ImportHindcast("tos", 3, "v1", archiveRows([]int{1993}, 1, []int{1}, 1)); err != nil {
		t.Fatalf("first import: %v", err)
	}
	if err := st.ImportHindcast("tos", 3, "v2", archiveRows([]int{1994}, 2, []int{1, 2}, 1)); err != nil {
		t.Fatalf("second import: %v", err)
	}

	datasets, err := st.ListDatasets("tos")
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if len(datasets) != 1 {
		t.Fatalf("datasets = %d, want 1 (replaced)", len(datasets))
	}
	if datasets[0].Source != "v2" || datasets[0].Members != 2 {
		t.Errorf("dataset = %+v, want replacement", datasets[0])
	}
}

func TestLoadField(t *testing.T) {
	st := setupTestStore(t)
	if err := st.ImportHindcast("tos", 3, "test", archiveRows([]int{1993, 1994}, 2, []int{1, 2}, 3)); err != nil {
		t.Fatalf("ImportHindcast: %v", err)
	}
	ds, err := st.FindDataset("tos", 1994, 3)
	if err != nil {
		t.Fatalf("FindDataset: %v", err)
	}

	f, err := st.LoadField(ds, 1994)
	if err != nil {
		t.Fatalf("LoadField: %v", err)
	}
	if f.Members != 2 || len(f.Leads) != 2 || f.Cells != 3 {
		t.Fatalf("shape = %dx%dx%d", f.Members, len(f.Leads), f.Cells)
	}
	// value = year%100 + member + lead + cell
	if got, want := f.At(1, 1, 2), 94.0+1+2+2; got != want {
		t.Errorf("At(1,1,2) = %v, want %v", got, want)
	}
}

func TestLoadFieldIncomplete(t *testing.T) {
	st := setupTestStore(t)
	if err := st.ImportHindcast("tos", 3, "test", archiveRows([]int{1993}, 2, []int{1, 2}, 2)); err != nil {
		t.Fatalf("ImportHindcast: %v", err)
	}
	ds, err := st.FindDataset("tos", 1993, 3)
	if err != nil {
		t.Fatalf("FindDataset: %v", err)
	}
	if _, err := st.db.Exec(`DELETE FROM hindcast_values WHERE member = 1 AND lead = 2 AND cell = 0`); err != nil {
		t.Fatalf("delete row: %v", err)
	}

	if _, err := st.LoadField(ds, 1993); err == nil {
		t.Fatal("LoadField accepted incomplete field")
	}
}

func TestLoadHindcast(t *testing.T) {
	st := setupTestStore(t)
	years := []int{1995, 1993, 1994} // import order is not year order
	var rows []models.HindcastRow
	for _, y := range years {
		rows = append(rows, archiveRows([]int{y}, 2, []int{1, 2}, 2)...)
	}
	if err := st.ImportHindcast("tos", 3, "test", rows); err != nil {
		t.Fatalf("ImportHindcast: %v", err)
	}
	ds, err := st.FindDataset("tos", 1993, 3)
	if err != nil {
		t.Fatalf("FindDataset: %v", err)
	}

	h, err := st.LoadHindcast(ds.ID)
	if err != nil {
		t.Fatalf("LoadHindcast: %v", err)
	}
	if len(h.InitYears) != 3 || h.InitYears[0] != 1993 || h.InitYears[2] != 1995 {
		t.Fatalf("years = %v, want sorted [1993 1994 1995]", h.InitYears)
	}
	if got, want := h.At(2, 1, 0, 1), 95.0+1+1+1; got != want {
		t.Errorf("At(2,1,0,1) = %v, want %v", got, want)
	}
}

func TestRegionMasksAndAreas(t *testing.T) {
	st := setupTestStore(t)
	if err := st.ReplaceRegionMask("GOM", []int{0, 2}); err != nil {
		t.Fatalf("ReplaceRegionMask: %v", err)
	}
	if err := st.ReplaceRegionMask("MAB", []int{1}); err != nil {
		t.Fatalf("ReplaceRegionMask: %v", err)
	}
	if err := st.ReplaceCellAreas([]float64{10, 20, 30}); err != nil {
		t.Fatalf("ReplaceCellAreas: %v", err)
	}

	masks, err := st.RegionMasks(3)
	if err != nil {
		t.Fatalf("RegionMasks: %v", err)
	}
	if len(masks) != 2 {
		t.Fatalf("masks = %d, want 2", len(masks))
	}
	if masks[0].Name != "GOM" || !masks[0].Cells[0] || masks[0].Cells[1] || !masks[0].Cells[2] {
		t.Errorf("GOM mask = %+v", masks[0])
	}

	areas, err := st.CellAreas(3)
	if err != nil {
		t.Fatalf("CellAreas: %v", err)
	}
	if areas[1] != 20 {
		t.Errorf("areas = %v", areas)
	}

	// A mask cell beyond the grid is a shape error.
	if _, err := st.RegionMasks(2); err == nil {
		t.Error("RegionMasks accepted mask outside grid")
	}
	if _, err := st.CellAreas(4); err == nil {
		t.Error("CellAreas accepted sparse grid")
	}
}

func TestRegionalBoundariesRoundTrip(t *testing.T) {
	st := setupTestStore(t)
	if err := st.ImportHindcast("tos", 3, "test", archiveRows([]int{1993}, 1, []int{1, 2}, 1)); err != nil {
		t.Fatalf("ImportHindcast: %v", err)
	}
	ds, err := st.FindDataset("tos", 1993, 3)
	if err != nil {
		t.Fatalf("FindDataset: %v", err)
	}

	in := []models.RegionBoundaries{
		{Region: "GOM", Leads: []int{1, 2}, Lower: []float64{10, 11}, Upper: []float64{12, 13}},
		{Region: "MAB", Leads: []int{1, 2}, Lower: []float64{9, 9.5}, Upper: []float64{11, 11.5}},
	}
	if err := st.ReplaceRegionalBoundaries(ds.ID, "test provenance", in); err != nil {
		t.Fatalf("ReplaceRegionalBoundaries: %v", err)
	}

	out, err := st.RegionalBoundaries(ds.ID)
	if err != nil {
		t.Fatalf("RegionalBoundaries: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("regions = %d, want 2", len(out))
	}
	if out[0].Region != "GOM" || out[0].Lower[1] != 11 || out[0].Upper[0] != 12 {
		t.Errorf("GOM = %+v", out[0])
	}
}

func TestGriddedBoundaryRoundTrip(t *testing.T) {
	st := setupTestStore(t)
	b := &tercile.Boundary{
		Leads: []int{1, 2},
		Cells: 2,
		Lower: []float64{1, 2, 3, 4},
		Upper: []float64{5, 6, 7, 8},
	}
	if err := st.ReplaceGriddedBoundary("tos", 3, b); err != nil {
		t.Fatalf("ReplaceGriddedBoundary: %v", err)
	}

	got, err := st.GriddedBoundary("tos", 3, []int{1, 2}, 2)
	if err != nil {
		t.Fatalf("GriddedBoundary: %v", err)
	}
	for i := range b.Lower {
		if got.Lower[i] != b.Lower[i] || got.Upper[i] != b.Upper[i] {
			t.Errorf("index %d: (%v,%v), want (%v,%v)", i, got.Lower[i], got.Upper[i], b.Lower[i], b.Upper[i])
		}
	}

	if _, err := st.GriddedBoundary("tob", 3, []int{1, 2}, 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing variable error = %v, want ErrNotFound", err)
	}
	if _, err := st.GriddedBoundary("tos", 3, []int{1}, 2); err == nil {
		t.Error("GriddedBoundary accepted mismatched lead axis")
	}
}

func TestSaveForecastOutput(t *testing.T) {
	st := setupTestStore(t)
	probs := &tercile.Probabilities{Windows: []int{0, 1}, Cells: 1}
	probs.Data[0] = []float64{0.5, 0.2}
	probs.Data[1] = []float64{0.3, 0.3}
	probs.Data[2] = []float64{0.2, 0.5}
	max := probs.Dominant()

	if err := st.SaveForecastOutput("tos", 1993, 3, probs, max); err != nil {
		t.Fatalf("SaveForecastOutput: %v", err)
	}

	got, err := st.ForecastOutputMax("tos", 1993, 3)
	if err != nil {
		t.Fatalf("ForecastOutputMax: %v", err)
	}
	if len(got) != 2 || got[0] != -0.5 || got[1] != 0.5 {
		t.Errorf("max = %v, want [-0.5 0.5]", got)
	}

	var n int
	if err := st.db.QueryRow(`SELECT COUNT(*) FROM tercile_prob`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 6 {
		t.Errorf("tercile_prob rows = %d, want 6", n)
	}
}

func TestWrapLocked(t *testing.T) {
	busy := fmt.Errorf("step: database is locked (5) (SQLITE_BUSY)")
	if err := wrapLocked(busy); !errors.Is(err, ErrLocked) {
		t.Errorf("wrapLocked(busy) = %v, want ErrLocked", err)
	}
	other := errors.New("syntax error")
	if err := wrapLocked(other); errors.Is(err, ErrLocked) {
		t.Error("wrapLocked wrapped a non-lock error")
	}
	if wrapLocked(nil) != nil {
		t.Error("wrapLocked(nil) != nil")
	}
}

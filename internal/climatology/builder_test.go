package climatology

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/coastwatch/tercile/internal/models"
	"github.com/coastwatch/tercile/internal/store"
)

type fakeStorage struct {
	datasets  []models.Dataset
	hindcasts map[int64]*models.Hindcast
	masks     []models.RegionMask
	areas     []float64

	writeErr error
	written  map[int64][]models.RegionBoundaries
}

func (f *fakeStorage) ListDatasets(variable string) ([]models.Dataset, error) {
	var out []models.Dataset
	for _, ds := range f.datasets {
		if ds.Variable == variable {
			out = append(out, ds)
		}
	}
	return out, nil
}

func (f *fakeStorage) LoadHindcast(id int64) (*models.Hindcast, error) {
	h, ok := f.hindcasts[id]
	if !ok {
		return nil, fmt.Errorf("dataset %d: %w", id, store.ErrNotFound)
	}
	return h, nil
}

func (f *fakeStorage) RegionMasks(cells int) ([]models.RegionMask, error) {
	return f.masks, nil
}

func (f *fakeStorage) CellAreas(cells int) ([]float64, error) {
	return f.areas, nil
}

func (f *fakeStorage) ReplaceRegionalBoundaries(id int64, provenance string, regions []models.RegionBoundaries) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.written == nil {
		f.written = make(map[int64][]models.RegionBoundaries)
	}
	f.written[id] = regions
	return nil
}

func testStorage() *fakeStorage {
	h := constantHindcast(10, 4, []int{1, 2}, 3, 12)
	for i := range h.Data {
		h.Data[i] += float64(i%11) * 0.1
	}
	return &fakeStorage{
		datasets: []models.Dataset{
			{ID: 1, Variable: "tos", InitMonth: 3, Members: 4, Leads: []int{1, 2}, Cells: 3, Source: "test archive"},
		},
		hindcasts: map[int64]*models.Hindcast{1: h},
		masks: []models.RegionMask{
			{Name: "GOM", Cells: []bool{true, true, false}},
			{Name: "MAB", Cells: []bool{false, true, true}},
		},
		areas: []float64{1, 2, 1},
	}
}

func TestBuilderRun(t *testing.T) {
	st := testStorage()
	b := NewBuilder(st, 4)

	if err := b.Run(context.Background(), "tos"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	regions := st.written[1]
	if len(regions) != 2 {
		t.Fatalf("wrote %d regions, want 2", len(regions))
	}
	// Worker results keep the mask order.
	if regions[0].Region != "GOM" || regions[1].Region != "MAB" {
		t.Errorf("region order = %s, %s", regions[0].Region, regions[1].Region)
	}
	for _, rb := range regions {
		if len(rb.Leads) != 2 {
			t.Errorf("region %s: %d leads, want 2", rb.Region, len(rb.Leads))
		}
		for l := range rb.Leads {
			if rb.Lower[l] > rb.Upper[l] {
				t.Errorf("region %s lead %d: f_lowmid > f_midhigh", rb.Region, rb.Leads[l])
			}
		}
	}
}

func TestBuilderUnknownVariable(t *testing.T) {
	b := NewBuilder(testStorage(), 1)
	err := b.Run(context.Background(), "sos")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Run error = %v, want ErrNotFound", err)
	}
}

func TestBuilderSkipsLockedDestination(t *testing.T) {
	st := testStorage()
	st.writeErr = fmt.Errorf("write boundaries: %w", store.ErrLocked)
	b := NewBuilder(st, 2)

	// A concurrent writer is recoverable: the batch continues and
	// reports success with the write skipped.
	if err := b.Run(context.Background(), "tos"); err != nil {
		t.Fatalf("Run = %v, want nil on locked destination", err)
	}
	if len(st.written) != 0 {
		t.Error("boundaries written despite lock")
	}
}

func TestBuilderPropagatesOtherWriteErrors(t *testing.T) {
	st := testStorage()
	st.writeErr = errors.New("disk full")
	b := NewBuilder(st, 2)

	if err := b.Run(context.Background(), "tos"); err == nil {
		t.Fatal("Run = nil, want error for non-lock write failure")
	}
}

func TestBuilderNoMasks(t *testing.T) {
	st := testStorage()
	st.masks = nil
	b := NewBuilder(st, 2)

	if err := b.Run(context.Background(), "tos"); err == nil {
		t.Fatal("Run = nil, want error when no region masks exist")
	}
}

func TestBuilderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewBuilder(testStorage(), 1)

	if err := b.Run(ctx, "tos"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
}

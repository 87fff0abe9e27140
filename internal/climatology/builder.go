package climatology

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coastwatch/tercile/internal/metrics"
	"github.com/coastwatch/tercile/internal/models"
	"github.com/coastwatch/tercile/internal/store"
)

// Storage is the slice of the persistence layer the builder needs.
type Storage interface {
	ListDatasets(variable string) ([]models.Dataset, error)
	LoadHindcast(datasetID int64) (*models.Hindcast, error)
	RegionMasks(cells int) ([]models.RegionMask, error)
	CellAreas(cells int) ([]float64, error)
	ReplaceRegionalBoundaries(datasetID int64, provenance string, regions []models.RegionBoundaries) error
}

// Builder runs the batch that turns the hindcast archive into regional
// tercile boundary datasets, one per (variable, initialization month).
type Builder struct {
	store   Storage
	workers int
}

func NewBuilder(st Storage, workers int) *Builder {
	if workers < 1 {
		workers = 1
	}
	return &Builder{store: st, workers: workers}
}

// Run builds boundaries for every archive dataset of the variable.
// A write conflict on the destination (another process holding the
// lock) skips that dataset and continues; any other failure stops the
// batch.
func (b *Builder) Run(ctx context.Context, variable string) error {
	datasets, err := b.store.ListDatasets(variable)
	if err != nil {
		return fmt.Errorf("list datasets: %w", err)
	}
	if len(datasets) == 0 {
		return fmt.Errorf("variable %s: %w", variable, store.ErrNotFound)
	}

	for _, ds := range datasets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.buildDataset(ds); err != nil {
			return fmt.Errorf("%s i%d: %w", ds.Variable, ds.InitMonth, err)
		}
	}
	return nil
}

// buildDataset fans the independent per-region work out to a bounded
// worker pool and persists the stacked result in one write.
func (b *Builder) buildDataset(ds models.Dataset) error {
	h, err := b.store.LoadHindcast(ds.ID)
	if err != nil {
		return fmt.Errorf("load hindcast: %w", err)
	}
	masks, err := b.store.RegionMasks(ds.Cells)
	if err != nil {
		return fmt.Errorf("load region masks: %w", err)
	}
	if len(masks) == 0 {
		return fmt.Errorf("no region masks on a %d-cell grid", ds.Cells)
	}
	area, err := b.store.CellAreas(ds.Cells)
	if err != nil {
		return fmt.Errorf("load cell areas: %w", err)
	}

	results := make([]models.RegionBoundaries, len(masks))
	errs := make([]error, len(masks))
	sem := make(chan struct{}, b.workers)
	var wg sync.WaitGroup
	for i, mask := range masks {
		wg.Add(1)
		go func(i int, mask models.RegionMask) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			results[i], errs[i] = BuildRegion(h, mask, area)
			metrics.RegionBuildDuration.Observe(time.Since(start).Seconds())
			metrics.RegionsProcessed.WithLabelValues(ds.Variable).Inc()
		}(i, mask)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return err
	}

	provenance := fmt.Sprintf("%s hindcast i%d: %d inits x %d members, %s",
		ds.Variable, ds.InitMonth, len(h.InitYears), h.Members, ds.Source)
	if err := b.store.ReplaceRegionalBoundaries(ds.ID, provenance, results); err != nil {
		if errors.Is(err, store.ErrLocked) {
			// Another writer holds the destination. Recoverable: skip
			// this dataset, no retry, keep the batch going.
			log.Printf("climatology: %s i%d: destination locked, skipping write", ds.Variable, ds.InitMonth)
			metrics.BoundaryWritesSkipped.WithLabelValues(ds.Variable).Inc()
			return nil
		}
		return fmt.Errorf("persist boundaries: %w", err)
	}

	metrics.DatasetsProcessed.WithLabelValues(ds.Variable).Inc()
	log.Printf("climatology: %s i%d: %d regions, %d leads", ds.Variable, ds.InitMonth, len(results), len(h.Leads))
	return nil
}

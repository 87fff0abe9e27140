package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RegionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tercile_regions_processed_total",
			Help: "Regions aggregated by the climatology builder",
		},
		[]string{"variable"},
	)

	RegionBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tercile_region_build_duration_seconds",
			Help:    "Per-region boundary build duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	BoundaryWritesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tercile_boundary_writes_skipped_total",
			Help: "Boundary dataset writes skipped because the destination was locked",
		},
		[]string{"variable"},
	)

	DatasetsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tercile_datasets_processed_total",
			Help: "Hindcast archive datasets fully processed by the builder",
		},
		[]string{"variable"},
	)

	ForecastsComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tercile_forecasts_computed_total",
			Help: "Tercile probability fields computed at inference time",
		},
		[]string{"variable"},
	)

	ArchiveFilesSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tercile_archive_files_synced_total",
			Help: "Archive files mirrored from the upstream FTP server",
		},
		[]string{"status"},
	)
)

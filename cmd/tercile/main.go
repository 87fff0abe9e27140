package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/coastwatch/tercile/internal/climatology"
	"github.com/coastwatch/tercile/internal/field"
	"github.com/coastwatch/tercile/internal/ingest"
	"github.com/coastwatch/tercile/internal/metrics"
	"github.com/coastwatch/tercile/internal/store"
	"github.com/coastwatch/tercile/internal/tercile"
)

type Context struct {
	Ctx   context.Context
	Store *store.Store
}

type CLI struct {
	DB string `env:"TERCILE_DB" default:"data/tercile.db" help:"Path to the SQLite database."`

	Forecast    ForecastCmd    `cmd:"" help:"Compute tercile probabilities for one forecast initialization."`
	Climatology ClimatologyCmd `cmd:"" help:"Build climatological tercile boundaries from the hindcast archive."`
	Sync        SyncCmd        `cmd:"" help:"Mirror the upstream hindcast archive into the local store."`
}

type ForecastCmd struct {
	Variable string `arg:"" help:"Physical variable to process (e.g. tos, tob)."`
	Year     int    `required:"" help:"Initialization year."`
	Month    int    `required:"" help:"Initialization month (1-12)."`
	LeadBins []int  `default:"0,3,6,9,12" help:"Lead window edges; must match the binning the boundary dataset was built against."`
	Monthly  bool   `help:"Skip lead binning and keep monthly windows."`
}

func (c *ForecastCmd) Run(app *Context) error {
	ds, err := app.Store.FindDataset(c.Variable, c.Year, c.Month)
	if err != nil {
		return err
	}
	f, err := app.Store.LoadField(ds, c.Year)
	if err != nil {
		return err
	}
	bounds, err := app.Store.GriddedBoundary(c.Variable, c.Month, ds.Leads, ds.Cells)
	if err != nil {
		return err
	}

	var spec field.LeadBinSpec
	if !c.Monthly {
		spec = field.LeadBinSpec(c.LeadBins)
		if err := spec.Validate(); err != nil {
			return err
		}
	}

	state, err := tercile.ForecastPipeline(f, bounds, spec).Evaluate()
	if err != nil {
		return err
	}
	if err := app.Store.SaveForecastOutput(c.Variable, c.Year, c.Month, state.Probs, state.Max); err != nil {
		return fmt.Errorf("persist output: %w", err)
	}
	metrics.ForecastsComputed.WithLabelValues(c.Variable).Inc()

	log.Printf("forecast: %s %d-%02d: %d windows x %d cells", c.Variable, c.Year, c.Month, len(state.Probs.Windows), state.Probs.Cells)
	if spec != nil {
		labels, err := tercile.WindowLabels(c.Year, c.Month, spec)
		if err != nil {
			return err
		}
		for i, period := range labels.Windows {
			log.Printf("forecast: window %d covers %s", i, period)
		}
	}
	return nil
}

type ClimatologyCmd struct {
	Variable    string `arg:"" help:"Physical variable to process (e.g. tos, tob)."`
	Workers     int    `default:"4" help:"Concurrent region workers."`
	MetricsAddr string `env:"TERCILE_METRICS_ADDR" help:"Expose Prometheus metrics on this address during the batch."`
}

func (c *ClimatologyCmd) Run(app *Context) error {
	if c.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(c.MetricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	builder := climatology.NewBuilder(app.Store, c.Workers)
	return builder.Run(app.Ctx, c.Variable)
}

type SyncCmd struct {
	Host  string   `env:"TERCILE_FTP_HOST" default:"ftp.coastwatch.noaa.gov:21" help:"Upstream FTP host."`
	Root  string   `env:"TERCILE_FTP_ROOT" default:"/hindcast/regrid" help:"Remote archive directory."`
	Local []string `type:"existingfile" help:"Import already-downloaded archive files instead of mirroring."`
}

func (c *SyncCmd) Run(app *Context) error {
	if len(c.Local) == 0 {
		return ingest.NewSyncer(c.Host, c.Root, app.Store).Sync()
	}
	for _, p := range c.Local {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		ds, err := ingest.ImportLocal(app.Store, filepath.Base(p), f)
		f.Close()
		if err != nil {
			return err
		}
		log.Printf("sync: imported %s (%s i%d, dataset %d)", p, ds.Variable, ds.InitMonth, ds.ID)
	}
	return nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("tercile"),
		kong.Description("Tercile probability engine for ocean ensemble forecasts."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", cli.DB)
	kctx.FatalIfErrorf(err)
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	kctx.FatalIfErrorf(st.Migrate())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kctx.FatalIfErrorf(kctx.Run(&Context{Ctx: ctx, Store: st}))
}

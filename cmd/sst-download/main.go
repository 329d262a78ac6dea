// sst-download - Download GHRSST level 4 sea surface temperature subsets
//
// Reads the PO.DAAC GHRSST catalog, locates the OSTIA (or MUR) aggregation,
// and fetches analysed_sst over a lon/lat box and time range through the
// NetcdfSubset service. With -celsius the file is rewritten in °C.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/KI7MT/ocean-lab-apps/internal/common"
	"github.com/KI7MT/ocean-lab-apps/internal/download"
	"github.com/KI7MT/ocean-lab-apps/internal/grid"
	"github.com/KI7MT/ocean-lab-apps/internal/observability"
	"github.com/KI7MT/ocean-lab-apps/internal/thredds"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

var products = map[string]string{
	"ostia": thredds.OSTIADataset,
	"mur":   thredds.MURDataset,
}

func main() {
	cfg, err := common.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	product := flag.String("product", "ostia", "SST analysis: ostia or mur")
	start := flag.String("start", "", "First day, YYYY-MM-DD (default: 3 days ago)")
	end := flag.String("end", "", "Last day, YYYY-MM-DD (default: yesterday)")
	north := flag.Float64("north", thredds.AgulhasBox.North, "Northern latitude bound")
	south := flag.Float64("south", thredds.AgulhasBox.South, "Southern latitude bound")
	east := flag.Float64("east", thredds.AgulhasBox.East, "Eastern longitude bound")
	west := flag.Float64("west", thredds.AgulhasBox.West, "Western longitude bound")
	celsius := flag.Bool("celsius", false, "Convert analysed_sst from K to °C")
	destDir := flag.String("dest", cfg.SSTDir(), "Destination directory")
	catalogURL := flag.String("catalog", thredds.GHRSSTCatalogURL, "GHRSST THREDDS catalog")
	metricsFile := flag.String("metrics-file", cfg.MetricsFile, "Write Prometheus textfile metrics here")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "sst-download v%s - GHRSST Subset Downloader\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Downloads analysed_sst for a region and date range to sst_YYYYMMDD.nc.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("sst-download v%s\n", Version)
		return
	}

	dataset, ok := products[*product]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown -product %q (allowed: ostia, mur)\n", *product)
		os.Exit(2)
	}

	defStart, defEnd := defaultWindow(time.Now())
	t0, err := parseDay(*start, defStart)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -start: %v\n", err)
		os.Exit(2)
	}
	t1, err := parseDay(*end, defEnd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -end: %v\n", err)
		os.Exit(2)
	}
	if t1.Before(t0) {
		fmt.Fprintf(os.Stderr, "Error: -end %s is before -start %s\n", t1.Format(time.DateOnly), t0.Format(time.DateOnly))
		os.Exit(2)
	}

	logger := common.NewLogger(cfg, "sst-download")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	fetcher := download.NewFetcher("sst", cfg.HTTPTimeout)
	fetcher.Metrics = metrics
	fetcher.Logger = logger

	dest := filepath.Join(*destDir, thredds.SSTFileName(t0))
	box := thredds.Box{North: *north, South: *south, East: *east, West: *west}

	fmt.Println("=========================================================")
	fmt.Printf("SST Download v%s\n", Version)
	fmt.Println("=========================================================")
	fmt.Printf("Dataset:     %s\n", dataset)
	fmt.Printf("Period:      %s to %s\n", t0.Format(time.DateOnly), t1.Format(time.DateOnly))
	fmt.Printf("Box:         N %g S %g E %g W %g\n", box.North, box.South, box.East, box.West)
	fmt.Printf("Output:      %s\n", dest)
	fmt.Println()

	startTime := time.Now()
	res, err := run(ctx, fetcher, *catalogURL, dataset, box, t0, t1, dest, *celsius, logger)
	metrics.Finish(err)
	if werr := metrics.WriteTextfile(*metricsFile); werr != nil {
		logger.Warn("write metrics", "path", *metricsFile, "err", werr)
	}
	if err != nil {
		logger.Error("sst download failed", "err", err)
		os.Exit(1)
	}

	fmt.Println("=========================================================")
	fmt.Println("Download Summary")
	fmt.Println("=========================================================")
	if res.Skipped {
		fmt.Printf("Skipped:    %s exists\n", filepath.Base(dest))
	} else {
		fmt.Printf("Downloaded: %s (%d bytes)\n", filepath.Base(dest), res.Bytes)
	}
	fmt.Printf("Elapsed:    %v\n", time.Since(startTime).Round(time.Millisecond))
	fmt.Println("=========================================================")
}

func run(ctx context.Context, fetcher *download.Fetcher, catalogURL, dataset string, box thredds.Box, t0, t1 time.Time, dest string, celsius bool, logger *slog.Logger) (download.Result, error) {
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		return download.Result{Path: dest, Bytes: info.Size(), Skipped: true}, nil
	}

	cat, err := thredds.Fetch(ctx, &http.Client{Timeout: time.Minute}, catalogURL)
	if err != nil {
		return download.Result{}, err
	}
	ds, err := cat.Dataset(dataset)
	if err != nil {
		return download.Result{}, err
	}
	u, err := cat.QueryURL(ds, thredds.Query{
		Vars:      []string{thredds.SSTVariable},
		Box:       &box,
		TimeStart: t0,
		TimeEnd:   t1.Add(24*time.Hour - time.Second),
	})
	if err != nil {
		return download.Result{}, err
	}
	logger.Info("requesting subset", "url", u)

	if !celsius {
		return fetcher.Fetch(ctx, u, dest)
	}

	raw := dest + ".kelvin"
	res, err := fetcher.Fetch(ctx, u, raw)
	if err != nil {
		return res, err
	}
	defer os.Remove(raw)

	f, err := grid.ReadField(raw, thredds.SSTVariable)
	if err != nil {
		return res, err
	}
	grid.ToCelsius(f)
	if err := grid.WriteFields(dest, f); err != nil {
		return res, err
	}
	if info, err := os.Stat(dest); err == nil {
		res.Bytes = info.Size()
	}
	res.Path = dest
	return res, nil
}

// defaultWindow returns the days from three days before now through yesterday,
// the range of analyses normally published.
func defaultWindow(now time.Time) (start, end time.Time) {
	today := now.UTC().Truncate(24 * time.Hour)
	return today.AddDate(0, 0, -3), today.AddDate(0, 0, -1)
}

func parseDay(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return time.Parse(time.DateOnly, s)
}

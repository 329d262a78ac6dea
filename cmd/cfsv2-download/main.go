// cfsv2-download - Download CFSv2 monthly-mean surface flux analyses from NCEI
//
// For every month the THREDDS catalog is read, the 00Z flux dataset is
// located, and a NetCDF subset of the requested variables over the southern
// hemisphere is fetched through the NetcdfSubset service.
//
// Build: CGO_ENABLED=1 go build -ldflags="-s -w" -o build/cfsv2-download ./cmd/cfsv2-download

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/KI7MT/ocean-lab-apps/internal/common"
	"github.com/KI7MT/ocean-lab-apps/internal/download"
	"github.com/KI7MT/ocean-lab-apps/internal/observability"
	"github.com/KI7MT/ocean-lab-apps/internal/thredds"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

const defaultVars = "Sensible_heat_net_flux_surface_Mixed_intervals_AverageAvg-6hourIntv," +
	"Latent_heat_net_flux_surface_Mixed_intervals_AverageAvg-6hourIntv"

func main() {
	cfg, err := common.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	variables := flag.String("vars", defaultVars, "Comma-separated CFSv2 variable names")
	years := flag.String("years", "", "Years to download, e.g. 2012-2022 (required)")
	months := flag.String("months", "1-12", "Months to download")
	destDir := flag.String("dest", filepath.Join(cfg.ReanalysisDir(), "cfsv2"), "Destination directory")
	workers := flag.Int("workers", 1, "Concurrent subset downloads")
	resume := flag.Bool("resume", false, "Skip files recorded in the download manifest")
	manifestPath := flag.String("manifest", cfg.ManifestPath(), "Download manifest database (empty disables)")
	metricsFile := flag.String("metrics-file", cfg.MetricsFile, "Write Prometheus textfile metrics here")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "cfsv2-download v%s - CFSv2 Monthly Flux Downloader\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] -years 2012-2022\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Downloads cfsv2_flxf00_YYYYMM.nc subsets (north=0 south=-90 east=360 west=0).\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("cfsv2-download v%s\n", Version)
		return
	}

	yearList, err := common.ParseRanges(*years)
	if err != nil || len(yearList) == 0 {
		fmt.Fprintf(os.Stderr, "Error: -years is required and must be valid\n\n")
		flag.Usage()
		os.Exit(2)
	}
	monthList, err := common.ParseRanges(*months)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -months: %v\n", err)
		os.Exit(2)
	}
	var varList []string
	for _, v := range strings.Split(*variables, ",") {
		if v = strings.TrimSpace(v); v != "" {
			varList = append(varList, v)
		}
	}

	logger := common.NewLogger(cfg, "cfsv2-download")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	fetcher := download.NewFetcher("cfsv2", cfg.HTTPTimeout)
	fetcher.Metrics = metrics
	fetcher.Logger = logger
	fetcher.SkipRecorded = *resume
	if *manifestPath != "" {
		m, err := download.OpenManifest(*manifestPath)
		if err != nil {
			logger.Error("open manifest", "path", *manifestPath, "err", err)
			os.Exit(1)
		}
		defer m.Close()
		fetcher.Manifest = m
	}

	fmt.Println("=========================================================")
	fmt.Printf("CFSv2 Download v%s\n", Version)
	fmt.Println("=========================================================")
	fmt.Printf("Variables:   %d\n", len(varList))
	fmt.Printf("Months:      %d\n", len(yearList)*len(monthList))
	fmt.Printf("Destination: %s\n", *destDir)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	startTime := time.Now()
	catalogClient := &http.Client{Timeout: time.Minute}
	resolve := func(ctx context.Context, y, m int) (string, error) {
		return subsetURL(ctx, catalogClient, y, m, varList)
	}
	jobs, failed := planJobs(ctx, *destDir, yearList, monthList, resolve, logger)

	results, err := fetcher.FetchAll(ctx, jobs, *workers)
	downloaded, skipped := 0, 0
	var bytes int64
	for _, r := range results {
		switch {
		case r.Skipped:
			skipped++
		case r.Duration > 0 && r.Bytes > 0:
			downloaded++
			bytes += r.Bytes
		}
	}
	if err != nil {
		logger.Error("download", "err", err)
		failed += len(jobs) - downloaded - skipped
	}
	elapsed := time.Since(startTime)

	var runErr error
	if failed > 0 {
		runErr = fmt.Errorf("%d months failed", failed)
	}
	metrics.Finish(runErr)
	if err := metrics.WriteTextfile(*metricsFile); err != nil {
		logger.Warn("write metrics", "path", *metricsFile, "err", err)
	}

	fmt.Println()
	fmt.Println("=========================================================")
	fmt.Println("Download Summary")
	fmt.Println("=========================================================")
	fmt.Printf("Downloaded: %d files (%.1f MiB)\n", downloaded, float64(bytes)/(1024*1024))
	fmt.Printf("Skipped:    %d files\n", skipped)
	fmt.Printf("Failed:     %d months\n", failed)
	fmt.Printf("Elapsed:    %v\n", elapsed.Round(time.Millisecond))
	fmt.Println("=========================================================")

	if failed > 0 {
		os.Exit(1)
	}
}

// planJobs resolves the subset URL of every year-month. Months whose file
// already exists become skip jobs; catalog failures are logged and counted.
// Cancellation stops the walk over all remaining months.
func planJobs(ctx context.Context, destDir string, years, months []int,
	resolve func(ctx context.Context, year, month int) (string, error), logger *slog.Logger) ([]download.Job, int) {
	var jobs []download.Job
	failed := 0
catalog:
	for _, y := range years {
		for _, m := range months {
			dest := filepath.Join(destDir, thredds.CFSv2FileName(y, m))
			if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
				jobs = append(jobs, download.Job{Dest: dest})
				continue
			}
			u, err := resolve(ctx, y, m)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					break catalog
				}
				logger.Error("catalog", "year", y, "month", m, "err", err)
				failed++
				continue
			}
			jobs = append(jobs, download.Job{URL: u, Dest: dest})
		}
	}
	return jobs, failed
}

func subsetURL(ctx context.Context, client *http.Client, year, month int, vars []string) (string, error) {
	cat, err := thredds.Fetch(ctx, client, thredds.CFSv2CatalogURL(year, month))
	if err != nil {
		return "", err
	}
	ds, err := cat.Dataset(thredds.CFSv2Dataset(year, month))
	if err != nil {
		return "", err
	}
	return cat.QueryURL(ds, thredds.Query{Vars: vars, Box: &thredds.CFSv2Box})
}

// era5-download - Download monthly ERA5 single-level files from the Copernicus
// Climate Data Store
//
// Each variable-month is one retrieval job: the request is submitted, the job
// is polled until the server has built the file, and the NetCDF result is
// downloaded to <dest>/<prefix><variable>_<YYYY><MM>.nc.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/KI7MT/ocean-lab-apps/internal/cds"
	"github.com/KI7MT/ocean-lab-apps/internal/common"
	"github.com/KI7MT/ocean-lab-apps/internal/download"
	"github.com/KI7MT/ocean-lab-apps/internal/observability"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg, err := common.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	variables := flag.String("vars", "10m_u_component_of_wind,10m_v_component_of_wind", "Comma-separated ERA5 variable names")
	years := flag.String("years", "", "Years to download, e.g. 2020 or 2018-2020 (required)")
	months := flag.String("months", "1-12", "Months to download, e.g. 1-12 or 1,2,3")
	days := flag.String("days", "", "Days of month (default: all)")
	dataset := flag.String("dataset", cds.DefaultDataset, "CDS dataset name")
	destDir := flag.String("dest", cfg.ReanalysisDir(), "Destination directory")
	prefix := flag.String("prefix", "", "File name prefix, e.g. era5_")
	poll := flag.Duration("poll", cds.DefaultPollInterval, "Job status poll interval")
	workers := flag.Int("workers", 1, "Concurrent retrieval jobs")
	metricsFile := flag.String("metrics-file", cfg.MetricsFile, "Write Prometheus textfile metrics here")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "era5-download v%s - ERA5 Climate Data Store Downloader\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] -years 2020\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Downloads hourly ERA5 fields for the southern hemisphere, one file per\n")
		fmt.Fprintf(os.Stderr, "variable and month. Existing files are skipped.\n\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCredentials: CDSAPI_URL/CDSAPI_KEY or %s\n", cfg.CDSAPIRC)
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("era5-download v%s\n", Version)
		return
	}

	yearList, err := common.ParseRanges(*years)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -years: %v\n", err)
		os.Exit(2)
	}
	if len(yearList) == 0 {
		fmt.Fprintf(os.Stderr, "Error: -years is required\n\n")
		flag.Usage()
		os.Exit(2)
	}
	monthList, err := common.ParseRanges(*months)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -months: %v\n", err)
		os.Exit(2)
	}
	dayList, err := common.ParseRanges(*days)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -days: %v\n", err)
		os.Exit(2)
	}

	logger := common.NewLogger(cfg, "era5-download")

	creds, err := cds.LoadCredentials(cfg.CDSAPIURL, cfg.CDSAPIKey, cfg.CDSAPIRC)
	if err != nil {
		logger.Error("credentials", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	client := cds.New(creds, cds.WithPollInterval(*poll), cds.WithLogger(logger))
	fetcher := download.NewFetcher("era5", cfg.HTTPTimeout)
	fetcher.Metrics = metrics
	fetcher.Logger = logger

	var jobs []retrieval
	for _, v := range strings.Split(*variables, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		for _, y := range yearList {
			for _, m := range monthList {
				jobs = append(jobs, retrieval{
					request: cds.MonthlyRequest(v, y, m, dayList),
					dest:    cds.FilePath(*destDir, *prefix, v, y, m),
				})
			}
		}
	}

	fmt.Println("=========================================================")
	fmt.Printf("ERA5 Download v%s\n", Version)
	fmt.Println("=========================================================")
	fmt.Printf("Dataset:     %s\n", *dataset)
	fmt.Printf("Variables:   %s\n", *variables)
	fmt.Printf("Files:       %d\n", len(jobs))
	fmt.Printf("Destination: %s\n", *destDir)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	startTime := time.Now()
	downloaded, skipped, failed := runAll(ctx, client, fetcher, *dataset, jobs, *workers, logger)
	elapsed := time.Since(startTime)

	var runErr error
	if failed > 0 {
		runErr = fmt.Errorf("%d retrievals failed", failed)
	}
	metrics.Finish(runErr)
	if err := metrics.WriteTextfile(*metricsFile); err != nil {
		logger.Warn("write metrics", "path", *metricsFile, "err", err)
	}

	fmt.Println()
	fmt.Println("=========================================================")
	fmt.Println("Download Summary")
	fmt.Println("=========================================================")
	fmt.Printf("Downloaded: %d files\n", downloaded)
	fmt.Printf("Skipped:    %d files\n", skipped)
	fmt.Printf("Failed:     %d files\n", failed)
	fmt.Printf("Elapsed:    %v\n", elapsed.Round(time.Millisecond))
	fmt.Println("=========================================================")

	if failed > 0 {
		os.Exit(1)
	}
}

type retrieval struct {
	request cds.Request
	dest    string
}

func runAll(ctx context.Context, client *cds.Client, fetcher *download.Fetcher, dataset string, jobs []retrieval, workers int, logger *slog.Logger) (downloaded, skipped, failed int) {
	if workers < 1 {
		workers = 1
	}
	type outcome struct {
		skipped bool
		err     error
	}
	results := make(chan outcome, len(jobs))
	sem := make(chan struct{}, workers)

	for _, job := range jobs {
		if info, err := os.Stat(job.dest); err == nil && info.Size() > 0 {
			logger.Info("exists, skipping", "path", job.dest)
			if fetcher.Metrics != nil {
				fetcher.Metrics.FilesSkipped.WithLabelValues(fetcher.Source).Inc()
			}
			results <- outcome{skipped: true}
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results <- outcome{err: ctx.Err()}
			continue
		}
		go func(job retrieval) {
			defer func() { <-sem }()
			results <- outcome{err: retrieve(ctx, client, fetcher, dataset, job, logger)}
		}(job)
	}

	for range jobs {
		o := <-results
		switch {
		case o.skipped:
			skipped++
		case o.err != nil:
			failed++
		default:
			downloaded++
		}
	}
	return downloaded, skipped, failed
}

func retrieve(ctx context.Context, client *cds.Client, fetcher *download.Fetcher, dataset string, job retrieval, logger *slog.Logger) error {
	name := job.request.Variable[0] + " " + job.request.Year[0] + "-" + job.request.Month[0]
	logger.Info("requesting", "job", name)

	j, err := client.Retrieve(ctx, dataset, job.request)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("retrieve failed", "job", name, "err", err)
		}
		return err
	}
	res, err := client.Download(ctx, fetcher, j, job.dest)
	if err != nil {
		logger.Error("download failed", "job", name, "err", err)
		return err
	}
	logger.Info("downloaded", "path", res.Path, "bytes", res.Bytes, "elapsed", res.Duration.Round(time.Millisecond))
	return nil
}

// seaice-download - Download daily Antarctic AMSR2 sea-ice concentration files
//
// Scrapes the meereisportal.de yearly directory listing, selects the files
// between -start and -end, and downloads them together with the
// longitude/latitude grid of the 6.25 km product.
//
// Build: CGO_ENABLED=1 go build -ldflags="-s -w" -o build/seaice-download ./cmd/seaice-download

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/KI7MT/ocean-lab-apps/internal/common"
	"github.com/KI7MT/ocean-lab-apps/internal/download"
	"github.com/KI7MT/ocean-lab-apps/internal/observability"
	"github.com/KI7MT/ocean-lab-apps/internal/seaice"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg, err := common.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}


	year := flag.Int("year", time.Now().Year(), "Archive year")
	start := flag.String("start", "", "First file date, YYYYMMDD (default: first in listing)")
	end := flag.String("end", "", "Stop before this file date, YYYYMMDD (default: through last)")
	ext := flag.String("ext", seaice.DefaultExtension, "File extension to select")
	archive := flag.String("url", "", "Directory listing URL (default: meereisportal.de archive for -year)")
	gridFile := flag.Bool("grid", true, "Also download the lon/lat grid file")
	destDir := flag.String("dest", cfg.SeaIceDir(), "Destination directory")
	workers := flag.Int("workers", 1, "Concurrent downloads")
	resume := flag.Bool("resume", false, "Skip files recorded in the download manifest")
	manifestPath := flag.String("manifest", cfg.ManifestPath(), "Download manifest database (empty disables)")
	list := flag.Bool("list", false, "List selected files and exit")
	metricsFile := flag.String("metrics-file", cfg.MetricsFile, "Write Prometheus textfile metrics here")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "seaice-download v%s - AMSR2 Sea-Ice Downloader\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Downloads daily sea-ice concentration files from %s\n\n", seaice.ArchiveURL(*year))
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("seaice-download v%s\n", Version)
		return
	}

	pageURL := *archive
	if pageURL == "" {
		pageURL = seaice.ArchiveURL(*year)
	}

	logger := common.NewLogger(cfg, "seaice-download")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := seaice.ListFiles(ctx, &http.Client{Timeout: time.Minute}, pageURL, *ext)
	if err != nil {
		logger.Error("list files", "url", pageURL, "err", err)
		os.Exit(1)
	}
	selected := seaice.SelectRange(files, *start, *end)

	if *list {
		for _, u := range selected {
			fmt.Println(u)
		}
		return
	}

	metrics := observability.NewMetrics()
	fetcher := download.NewFetcher("seaice", cfg.HTTPTimeout)
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

	jobs := make([]download.Job, 0, len(selected)+1)
	for _, u := range selected {
		jobs = append(jobs, download.Job{URL: u, Dest: filepath.Join(*destDir, path.Base(u))})
	}
	if *gridFile {
		jobs = append(jobs, download.Job{URL: seaice.GridURL, Dest: filepath.Join(*destDir, path.Base(seaice.GridURL))})
	}

	fmt.Println("=========================================================")
	fmt.Printf("Sea-Ice Download v%s\n", Version)
	fmt.Println("=========================================================")
	fmt.Printf("Listing:     %s (%d files)\n", pageURL, len(files))
	fmt.Printf("Selected:    %d files\n", len(selected))
	fmt.Printf("Destination: %s\n", *destDir)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	startTime := time.Now()
	results, err := fetcher.FetchAll(ctx, jobs, *workers)
	downloaded, skipped := 0, 0
	var bytes int64
	for _, r := range results {
		switch {
		case r.Skipped:
			skipped++
		case r.Bytes > 0:
			downloaded++
			bytes += r.Bytes
		}
	}
	failed := len(jobs) - downloaded - skipped
	if err != nil {
		logger.Error("download", "err", err)
	}
	metrics.Finish(err)
	if werr := metrics.WriteTextfile(*metricsFile); werr != nil {
		logger.Warn("write metrics", "path", *metricsFile, "err", werr)
	}

	fmt.Println()
	fmt.Println("=========================================================")
	fmt.Println("Download Summary")
	fmt.Println("=========================================================")
	fmt.Printf("Downloaded: %d files (%.1f MiB)\n", downloaded, float64(bytes)/(1024*1024))
	fmt.Printf("Skipped:    %d files\n", skipped)
	fmt.Printf("Failed:     %d files\n", failed)
	fmt.Printf("Elapsed:    %v\n", time.Since(startTime).Round(time.Millisecond))
	fmt.Println("=========================================================")

	if err != nil {
		os.Exit(1)
	}
}

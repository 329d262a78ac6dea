// instrument-decode - Decode shipboard instrument logs to CSV or Parquet
//
// Supported logs:
//   - sonic: Gill R3A sonic anemometer binary records
//   - imu:   Crossbow NAV440 IMU binary records
//   - gps:   Hemisphere VS100 RMC sentences with logger timestamps
//
// Files ending in .gz are decompressed on the fly. Bad records are counted
// and skipped.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/KI7MT/ocean-lab-apps/internal/common"
	"github.com/KI7MT/ocean-lab-apps/internal/instrument"
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

	kindFlag := flag.String("type", "", "Instrument: sonic, imu or gps (required)")
	formatFlag := flag.String("format", "csv", "Output format: csv, csv.zst or parquet")
	outDir := flag.String("out", ".", "Output directory")
	keepFirst := flag.Bool("keep-first", false, "Decode the first binary record instead of discarding it")
	noHemisphere := flag.Bool("no-hemisphere", false, "Do not sign GPS latitudes S and longitudes W negative")
	workers := flag.Int("workers", runtime.NumCPU(), "Files decoded concurrently")
	metricsFile := flag.String("metrics-file", cfg.MetricsFile, "Write Prometheus textfile metrics here")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "instrument-decode v%s - Instrument Log Decoder\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s -type sonic [OPTIONS] FILE...\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("instrument-decode v%s\n", Version)
		return
	}

	kind, err := instrument.ParseKind(*kindFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -type: %v\n\n", err)
		flag.Usage()
		os.Exit(2)
	}
	format, err := instrument.ParseFormat(*formatFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -format: %v\n", err)
		os.Exit(2)
	}
	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no input files\n\n")
		flag.Usage()
		os.Exit(2)
	}
	if *workers < 1 {
		*workers = 1
	}

	logger := common.NewLogger(cfg, "instrument-decode")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := instrument.DefaultOptions()
	opts.SkipFirst = !*keepFirst
	opts.ApplyHemisphere = !*noHemisphere
	opts.Logger = logger

	fmt.Println("=========================================================")
	fmt.Printf("Instrument Decode v%s\n", Version)
	fmt.Println("=========================================================")
	fmt.Printf("Instrument:  %s\n", kind)
	fmt.Printf("Files:       %d\n", len(files))
	fmt.Printf("Format:      %s\n", format)
	fmt.Printf("Output:      %s\n", *outDir)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	metrics := observability.NewMetrics()
	stats := common.NewStats(logger, 5*time.Second)
	stats.StartReporter()
	startTime := time.Now()

	var failedFiles atomic.Int64
	sem := make(chan struct{}, *workers)
	var wg sync.WaitGroup
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()

			out := filepath.Join(*outDir, instrument.OutputName(path, format))
			ps, err := decodeFile(kind, path, out, format, opts)
			stats.AddRecords(uint64(ps.Decoded))
			stats.AddSkipped(uint64(ps.Failed))
			stats.AddBytes(uint64(ps.BytesRead))
			metrics.RecordsDecoded.WithLabelValues(string(kind)).Add(float64(ps.Decoded))
			metrics.RecordsFailed.WithLabelValues(string(kind)).Add(float64(ps.Failed))
			if err != nil {
				failedFiles.Add(1)
				logger.Error("decode failed", "file", path, "err", err)
				return
			}
			logger.Info("decoded", "file", filepath.Base(path), "out", out,
				"records", ps.Decoded, "failed", ps.Failed, "ignored", ps.Ignored)
		}(path)
	}
	wg.Wait()
	stats.StopReporter()
	elapsed := time.Since(startTime)

	var runErr error
	if n := failedFiles.Load(); n > 0 {
		runErr = fmt.Errorf("%d files failed", n)
	} else if ctx.Err() != nil {
		runErr = ctx.Err()
	}
	metrics.Finish(runErr)
	if err := metrics.WriteTextfile(*metricsFile); err != nil {
		logger.Warn("write metrics", "path", *metricsFile, "err", err)
	}

	fmt.Println()
	fmt.Println("=========================================================")
	fmt.Println("Decode Summary")
	fmt.Println("=========================================================")
	fmt.Printf("Records:      %d\n", stats.Records())
	fmt.Printf("Skipped:      %d\n", stats.Skipped())
	fmt.Printf("Read:         %.1f MiB\n", float64(stats.Bytes())/(1024*1024))
	fmt.Printf("Failed files: %d\n", failedFiles.Load())
	fmt.Printf("Elapsed:      %v\n", elapsed.Round(time.Millisecond))
	fmt.Println("=========================================================")

	if runErr != nil {
		os.Exit(1)
	}
}

func decodeFile(kind instrument.Kind, path, out string, format instrument.Format, opts instrument.Options) (instrument.ParseStats, error) {
	opts.Logger = opts.Logger.With("file", filepath.Base(path))
	switch kind {
	case instrument.KindSonic:
		recs, ps, err := instrument.ReadSonicFile(path, opts)
		if err != nil {
			return ps, err
		}
		return ps, instrument.ExportFile(out, format, instrument.SonicRows(recs))
	case instrument.KindIMU:
		recs, ps, err := instrument.ReadIMUFile(path, opts)
		if err != nil {
			return ps, err
		}
		return ps, instrument.ExportFile(out, format, instrument.IMURows(recs))
	case instrument.KindGPS:
		fixes, ps, err := instrument.ReadGPSFile(path, opts)
		if err != nil {
			return ps, err
		}
		return ps, instrument.ExportFile(out, format, instrument.GPSRows(fixes))
	}
	return instrument.ParseStats{}, fmt.Errorf("unknown instrument %q", kind)
}

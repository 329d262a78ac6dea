// instrument-ingest - Load decoded instrument logs into ClickHouse
//
// Decodes sonic, IMU or GPS logs and inserts the records through the ch-go
// native protocol in columnar batches. Rows are tagged with the source file
// name; -replace deletes a file's earlier rows before inserting.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/KI7MT/ocean-lab-apps/internal/common"
	"github.com/KI7MT/ocean-lab-apps/internal/instrument"
	"github.com/KI7MT/ocean-lab-apps/internal/observability"
	"github.com/KI7MT/ocean-lab-apps/internal/store"
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
	chHost := flag.String("ch-host", cfg.ClickHouseAddr(), "ClickHouse native address")
	chDB := flag.String("ch-db", cfg.ClickHouseDatabase, "ClickHouse database")
	batchSize := flag.Int("batch", store.DefaultBatchSize, "Rows per INSERT")
	replace := flag.Bool("replace", false, "Delete rows previously loaded from each file first")
	keepFirst := flag.Bool("keep-first", false, "Decode the first binary record instead of discarding it")
	workers := flag.Int("workers", 4, "Files ingested concurrently (one connection each)")
	metricsFile := flag.String("metrics-file", cfg.MetricsFile, "Write Prometheus textfile metrics here")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "instrument-ingest v%s - Instrument Log Loader\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s -type sonic [OPTIONS] FILE...\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("instrument-ingest v%s\n", Version)
		return
	}

	kind, err := instrument.ParseKind(*kindFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -type: %v\n\n", err)
		flag.Usage()
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

	if err := cfg.SetClickHouseAddr(*chHost); err != nil {
		fmt.Fprintf(os.Stderr, "Error: -ch-host: %v\n", err)
		os.Exit(2)
	}
	cfg.ClickHouseDatabase = *chDB

	logger := common.NewLogger(cfg, "instrument-ingest")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	conn, err := store.DialNative(ctx, cfg)
	if err != nil {
		logger.Error("connect", "err", err)
		os.Exit(1)
	}
	if err := store.NewInstrumentWriter(conn, cfg.ClickHouseDatabase).EnsureTables(ctx); err != nil {
		conn.Close()
		logger.Error("create tables", "err", err)
		os.Exit(1)
	}
	conn.Close()

	opts := instrument.DefaultOptions()
	opts.SkipFirst = !*keepFirst
	opts.Logger = logger

	fmt.Println("=========================================================")
	fmt.Printf("Instrument Ingest v%s\n", Version)
	fmt.Println("=========================================================")
	fmt.Printf("Instrument:  %s\n", kind)
	fmt.Printf("Files:       %d\n", len(files))
	fmt.Printf("ClickHouse:  %s/%s\n", cfg.ClickHouseAddr(), cfg.ClickHouseDatabase)
	fmt.Printf("Batch size:  %d\n", *batchSize)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

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
			if err := ingestFile(ctx, cfg, kind, path, opts, *batchSize, *replace, metrics, stats, logger); err != nil {
				failedFiles.Add(1)
				logger.Error("ingest failed", "file", path, "err", err)
			}
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
	fmt.Println("Ingest Summary")
	fmt.Println("=========================================================")
	fmt.Printf("Rows:         %d\n", stats.Records())
	fmt.Printf("Skipped:      %d\n", stats.Skipped())
	fmt.Printf("Failed files: %d\n", failedFiles.Load())
	fmt.Printf("Elapsed:      %v\n", elapsed.Round(time.Millisecond))
	if secs := elapsed.Seconds(); secs > 0 {
		fmt.Printf("Throughput:   %.0f rows/sec\n", float64(stats.Records())/secs)
	}
	fmt.Println("=========================================================")

	if runErr != nil {
		os.Exit(1)
	}
}

func ingestFile(ctx context.Context, cfg *common.Config, kind instrument.Kind, path string, opts instrument.Options,
	batchSize int, replace bool, metrics *observability.Metrics, stats *common.Stats, logger *slog.Logger) error {
	source := filepath.Base(path)
	opts.Logger = logger.With("file", source)

	conn, err := store.DialNative(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	w := store.NewInstrumentWriter(conn, cfg.ClickHouseDatabase)
	w.BatchSize = batchSize
	w.Metrics = metrics
	w.Logger = opts.Logger

	table := map[instrument.Kind]string{
		instrument.KindSonic: store.SonicTable,
		instrument.KindIMU:   store.IMUTable,
		instrument.KindGPS:   store.GPSTable,
	}[kind]
	if replace {
		if err := w.DeleteSource(ctx, table, source); err != nil {
			return err
		}
	}

	var (
		ps instrument.ParseStats
		n  int
	)
	switch kind {
	case instrument.KindSonic:
		var recs []instrument.SonicRecord
		if recs, ps, err = instrument.ReadSonicFile(path, opts); err == nil {
			n, err = w.WriteSonic(ctx, source, recs)
		}
	case instrument.KindIMU:
		var recs []instrument.IMURecord
		if recs, ps, err = instrument.ReadIMUFile(path, opts); err == nil {
			n, err = w.WriteIMU(ctx, source, recs)
		}
	case instrument.KindGPS:
		var fixes []instrument.GPSFix
		if fixes, ps, err = instrument.ReadGPSFile(path, opts); err == nil {
			n, err = w.WriteGPS(ctx, source, fixes)
		}
	}

	stats.AddRecords(uint64(n))
	stats.AddSkipped(uint64(ps.Failed))
	stats.AddBytes(uint64(ps.BytesRead))
	metrics.RecordsDecoded.WithLabelValues(string(kind)).Add(float64(ps.Decoded))
	metrics.RecordsFailed.WithLabelValues(string(kind)).Add(float64(ps.Failed))
	if err != nil {
		return err
	}
	logger.Info("ingested", "file", source, "table", table, "rows", n, "failed", ps.Failed)
	return nil
}

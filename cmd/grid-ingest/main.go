// grid-ingest - Load a gridded NetCDF variable into ClickHouse
//
// Reads one (time, lat, lon) variable per file and inserts every non-missing
// cell into grid_values through clickhouse-go batches. Optional conversions
// shift longitudes to -180..180, turn hourly accumulated fluxes into W m-2,
// or convert kelvin to °C before loading.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/KI7MT/ocean-lab-apps/internal/common"
	"github.com/KI7MT/ocean-lab-apps/internal/grid"
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

	varName := flag.String("var", "", "Variable to load (required)")
	chHost := flag.String("ch-host", cfg.ClickHouseAddr(), "ClickHouse native address")
	chDB := flag.String("ch-db", cfg.ClickHouseDatabase, "ClickHouse database")
	batchSize := flag.Int("batch", store.DefaultBatchSize, "Rows per INSERT")
	replace := flag.Bool("replace", false, "Delete rows previously loaded from each file first")
	adjustLon := flag.Bool("adjust-lon", false, "Shift longitudes from 0..360 to -180..180")
	accumulated := flag.Bool("accumulated", false, "Convert hourly accumulated J m-2 to W m-2")
	celsius := flag.Bool("celsius", false, "Convert K to °C")
	metricsFile := flag.String("metrics-file", cfg.MetricsFile, "Write Prometheus textfile metrics here")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "grid-ingest v%s - Gridded NetCDF Loader\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s -var sst [OPTIONS] FILE...\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("grid-ingest v%s\n", Version)
		return
	}
	files := flag.Args()
	if *varName == "" || len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Error: -var and at least one file are required\n\n")
		flag.Usage()
		os.Exit(2)
	}
	if err := cfg.SetClickHouseAddr(*chHost); err != nil {
		fmt.Fprintf(os.Stderr, "Error: -ch-host: %v\n", err)
		os.Exit(2)
	}
	cfg.ClickHouseDatabase = *chDB

	logger := common.NewLogger(cfg, "grid-ingest")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := store.OpenGrid(ctx, cfg)
	if err != nil {
		logger.Error("connect", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	sink := &store.ClickHouseGridSink{Conn: conn, Database: cfg.ClickHouseDatabase}
	if err := sink.EnsureTable(ctx); err != nil {
		logger.Error("create table", "err", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	ingester := &store.GridIngester{Sink: sink, BatchSize: *batchSize, Metrics: metrics, Logger: logger}

	fmt.Println("=========================================================")
	fmt.Printf("Grid Ingest v%s\n", Version)
	fmt.Println("=========================================================")
	fmt.Printf("Variable:    %s\n", *varName)
	fmt.Printf("Files:       %d\n", len(files))
	fmt.Printf("ClickHouse:  %s/%s.%s\n", cfg.ClickHouseAddr(), cfg.ClickHouseDatabase, store.GridTable)
	fmt.Println()

	startTime := time.Now()
	var rows, failed int
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		source := filepath.Base(path)
		f, err := grid.ReadField(path, *varName)
		if err != nil {
			logger.Error("read", "file", path, "err", err)
			failed++
			continue
		}
		if *adjustLon {
			f = grid.AdjustLongitude(f)
		}
		if *accumulated {
			grid.ConvertAccumulated(f)
		}
		if *celsius {
			grid.ToCelsius(f)
		}
		if *replace {
			if err := sink.DeleteSource(ctx, source); err != nil {
				logger.Error("delete", "file", source, "err", err)
				failed++
				continue
			}
		}
		n, err := ingester.IngestField(ctx, f, source)
		rows += n
		if err != nil {
			logger.Error("ingest", "file", path, "err", err)
			failed++
			continue
		}
		logger.Info("ingested", "file", source, "rows", n)
	}
	elapsed := time.Since(startTime)

	var runErr error
	if failed > 0 {
		runErr = fmt.Errorf("%d files failed", failed)
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
	fmt.Printf("Rows:         %d\n", rows)
	fmt.Printf("Failed files: %d\n", failed)
	fmt.Printf("Elapsed:      %v\n", elapsed.Round(time.Millisecond))
	fmt.Println("=========================================================")

	if runErr != nil {
		os.Exit(1)
	}
}

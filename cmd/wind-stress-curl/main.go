// wind-stress-curl - Compute the curl of surface wind stress
//
// Reads the eastward and northward wind stress components (N m-2) from NetCDF,
// computes curl(τ) = ∂τy/∂x − ∂τx/∂y in N m-3 per time step, and writes the
// result as curl_tau.

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/KI7MT/ocean-lab-apps/internal/common"
	"github.com/KI7MT/ocean-lab-apps/internal/grid"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg, err := common.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	txFile := flag.String("tx-file", "", "File holding the eastward stress (required)")
	tyFile := flag.String("ty-file", "", "File holding the northward stress (default: -tx-file)")
	txVar := flag.String("tx", "iews", "Eastward stress variable")
	tyVar := flag.String("ty", "inss", "Northward stress variable")
	outPath := flag.String("out", "curl_tau.nc", "Output NetCDF file")
	adjustLon := flag.Bool("adjust-lon", false, "Shift longitudes from 0..360 to -180..180 first")
	keepInputs := flag.Bool("keep-inputs", false, "Also write the input components to -out")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "wind-stress-curl v%s - Wind Stress Curl\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] -tx-file stress.nc\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("wind-stress-curl v%s\n", Version)
		return
	}
	if *txFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -tx-file is required\n\n")
		flag.Usage()
		os.Exit(2)
	}
	if *tyFile == "" {
		*tyFile = *txFile
	}

	logger := common.NewLogger(cfg, "wind-stress-curl")
	startTime := time.Now()

	tx, err := grid.ReadField(*txFile, *txVar)
	if err != nil {
		logger.Error("read tx", "err", err)
		os.Exit(1)
	}
	ty, err := grid.ReadField(*tyFile, *tyVar)
	if err != nil {
		logger.Error("read ty", "err", err)
		os.Exit(1)
	}
	if *adjustLon {
		tx = grid.AdjustLongitude(tx)
		ty = grid.AdjustLongitude(ty)
	}

	curl, err := grid.WindStressCurl(tx, ty)
	if err != nil {
		logger.Error("curl", "err", err)
		os.Exit(1)
	}

	fields := []*grid.Field{curl}
	if *keepInputs {
		fields = append(fields, tx, ty)
	}
	if err := grid.WriteFields(*outPath, fields...); err != nil {
		logger.Error("write", "path", *outPath, "err", err)
		os.Exit(1)
	}

	nt, ny, nx := curl.Shape()
	fmt.Println("=========================================================")
	fmt.Printf("Wind Stress Curl v%s\n", Version)
	fmt.Println("=========================================================")
	fmt.Printf("Input:      %s (%s, %s)\n", *txFile, *txVar, *tyVar)
	fmt.Printf("Grid:       %d steps x %d lat x %d lon\n", nt, ny, nx)
	fmt.Printf("Written:    %s\n", *outPath)
	fmt.Printf("Elapsed:    %v\n", time.Since(startTime).Round(time.Millisecond))
	fmt.Println("=========================================================")
}

// platform-export - Join Seaglider or Saildrone NetCDF files into one CSV
//
// Seaglider per-dive files p<sg><dive>.nc are concatenated along ctd_time with
// the dive number, depth and pressure of every sample. Saildrone deliveries
// saildrone*.nc are concatenated along time for one trajectory. Output ending
// in .zst is zstd compressed.

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/KI7MT/ocean-lab-apps/internal/common"
	"github.com/KI7MT/ocean-lab-apps/internal/platform"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg, err := common.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	kind := flag.String("type", "", "Platform: seaglider or saildrone (required)")
	dir := flag.String("dir", ".", "Directory holding the NetCDF files")
	sg := flag.Int("sg", 0, "Seaglider serial number (seaglider)")
	trajectory := flag.Int("trajectory", platform.DefaultTrajectory, "Saildrone trajectory (saildrone)")
	vars := flag.String("vars", "", "Comma-separated variables (default: temperature,salinity or the Saildrone set)")
	outPath := flag.String("out", "", "Output CSV file, .zst for compressed (required)")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "platform-export v%s - Glider and Saildrone Export\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] -type seaglider -sg 543 -out sg543.csv\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("platform-export v%s\n", Version)
		return
	}
	if *outPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -out is required\n\n")
		flag.Usage()
		os.Exit(2)
	}

	logger := common.NewLogger(cfg, "platform-export")
	startTime := time.Now()

	var (
		files []string
		names []string
		rows  int
		write func(io.Writer) error
	)
	if *vars != "" {
		for _, v := range strings.Split(*vars, ",") {
			if v = strings.TrimSpace(v); v != "" {
				names = append(names, v)
			}
		}
	}

	switch *kind {
	case "seaglider":
		if *sg <= 0 {
			fmt.Fprintf(os.Stderr, "Error: -sg is required for seaglider\n\n")
			os.Exit(2)
		}
		if names == nil {
			names = []string{"temperature", "salinity"}
		}
		if files, err = platform.GliderFiles(*dir, *sg); err != nil {
			logger.Error("list dives", "dir", *dir, "err", err)
			os.Exit(1)
		}
		g, err := platform.ReadSeaglider(files, names)
		if err != nil {
			logger.Error("read seaglider", "err", err)
			os.Exit(1)
		}
		rows = g.Len()
		write = func(w io.Writer) error { return g.WriteCSV(w, names) }
	case "saildrone":
		if names == nil {
			names = platform.SaildroneVars
		}
		if files, err = platform.Glob(*dir, platform.SaildroneFilePattern); err != nil {
			logger.Error("list files", "dir", *dir, "err", err)
			os.Exit(1)
		}
		s, err := platform.ReadSaildrone(files, *trajectory, names)
		if err != nil {
			logger.Error("read saildrone", "err", err)
			os.Exit(1)
		}
		rows = s.Len()
		write = func(w io.Writer) error { return s.WriteCSV(w, names) }
	default:
		fmt.Fprintf(os.Stderr, "Error: -type must be seaglider or saildrone\n\n")
		flag.Usage()
		os.Exit(2)
	}

	if err := writeFile(*outPath, write); err != nil {
		logger.Error("write", "path", *outPath, "err", err)
		os.Exit(1)
	}

	fmt.Println("=========================================================")
	fmt.Printf("Platform Export v%s\n", Version)
	fmt.Println("=========================================================")
	fmt.Printf("Platform:   %s\n", *kind)
	fmt.Printf("Files:      %d\n", len(files))
	fmt.Printf("Variables:  %d\n", len(names))
	fmt.Printf("Rows:       %d\n", rows)
	fmt.Printf("Written:    %s\n", *outPath)
	fmt.Printf("Elapsed:    %v\n", time.Since(startTime).Round(time.Millisecond))
	fmt.Println("=========================================================")
}

// writeFile writes through a temporary file renamed into place on success.
func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = writeMaybeCompressed(f, strings.HasSuffix(path, ".zst"), write)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeMaybeCompressed(w io.Writer, compress bool, write func(io.Writer) error) error {
	if !compress {
		return write(w)
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := write(enc); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

package platform

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// Seaglider per-dive file variables.
const (
	ctdTime     = "ctd_time"
	ctdDepth    = "ctd_depth"
	ctdPressure = "ctd_pressure"
	gpsLon      = "log_gps_lon"
	gpsLat      = "log_gps_lat"
	gpsTime     = "log_gps_time"
)

// diveGPSFix selects the log_gps_* fix taken just before the dive starts.
const diveGPSFix = 1

var diveFileName = regexp.MustCompile(`^p(\d{3})(\d{4})\.nc$`)

// Dive is the surface position recorded with one dive file.
type Dive struct {
	Number  int
	Lon     float64
	Lat     float64
	GPSTime time.Time
}

// GliderSeries is a Seaglider record concatenated over dives along ctd_time.
type GliderSeries struct {
	Series
	Depth    []float64 // ctd_depth, m
	Pressure []float64 // ctd_pressure, dbar
	Dive     []int     // dive number of each sample
	Dives    []Dive
}

// GliderFiles returns the per-dive files p<sg><dive>.nc of glider sg in dir.
func GliderFiles(dir string, sg int) ([]string, error) {
	return Glob(dir, fmt.Sprintf("p%03d*.nc", sg))
}

// DiveNumber parses the dive number from a p<sg:3><dive:4>.nc file name.
func DiveNumber(path string) (int, error) {
	m := diveFileName.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, fmt.Errorf("not a dive file name: %q", filepath.Base(path))
	}
	return strconv.Atoi(m[2])
}

// ReadSeaglider concatenates vars from the dive files in paths, in order,
// along ctd_time. Each sample carries its dive number, depth and pressure.
func ReadSeaglider(paths []string, vars []string) (*GliderSeries, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	out := &GliderSeries{}
	for _, p := range paths {
		if err := out.readDive(p, vars); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (g *GliderSeries) readDive(path string, vars []string) error {
	number, err := DiveNumber(path)
	if err != nil {
		return err
	}
	nc, err := openFile(path)
	if err != nil {
		return err
	}
	defer nc.Close()

	ts, err := readTimes(nc, path, ctdTime)
	if err != nil {
		return err
	}
	n := len(ts)
	sameLen := func(name string, vals []float64) error {
		if len(vals) != n {
			return fmt.Errorf("%w: %s: %s has %d samples, %s has %d", ErrLengthMismatch, path, name, len(vals), ctdTime, n)
		}
		return nil
	}

	depth, _, err := readValues(nc, path, ctdDepth)
	if err != nil {
		return err
	}
	if err := sameLen(ctdDepth, depth); err != nil {
		return err
	}
	pressure, _, err := readValues(nc, path, ctdPressure)
	if err != nil {
		return err
	}
	if err := sameLen(ctdPressure, pressure); err != nil {
		return err
	}

	data := make(map[string][]float64, len(vars))
	for _, name := range vars {
		vals, _, err := readValues(nc, path, name)
		if err != nil {
			return err
		}
		if err := sameLen(name, vals); err != nil {
			return err
		}
		data[name] = vals
	}

	dive := Dive{Number: number, Lon: math.NaN(), Lat: math.NaN()}
	if lon, _, err := readValues(nc, path, gpsLon); err == nil && len(lon) > diveGPSFix {
		dive.Lon = lon[diveGPSFix]
	}
	if lat, _, err := readValues(nc, path, gpsLat); err == nil && len(lat) > diveGPSFix {
		dive.Lat = lat[diveGPSFix]
	}
	if gt, err := readTimes(nc, path, gpsTime); err == nil && len(gt) > diveGPSFix {
		dive.GPSTime = gt[diveGPSFix]
	}

	g.Time = append(g.Time, ts...)
	g.Depth = append(g.Depth, depth...)
	g.Pressure = append(g.Pressure, pressure...)
	for _, name := range vars {
		g.appendVar(name, data[name])
	}
	for range n {
		g.Dive = append(g.Dive, number)
	}
	g.Dives = append(g.Dives, dive)
	return nil
}

// WriteCSV writes the record as CSV with dive, ctd_depth and ctd_pressure
// columns ahead of names.
func (g *GliderSeries) WriteCSV(w io.Writer, names []string) error {
	header := append([]string{"time", "dive", ctdDepth, ctdPressure}, names...)
	return writeCSV(w, header, g.Len(), func(i int, row []string) []string {
		row = append(row,
			g.Time[i].Format(time.RFC3339Nano),
			strconv.Itoa(g.Dive[i]),
			formatValue(g.Depth[i]),
			formatValue(g.Pressure[i]),
		)
		for _, name := range names {
			row = append(row, formatValue(g.Vars[name][i]))
		}
		return row
	})
}

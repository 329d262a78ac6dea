// Package platform reads along-track records of autonomous ocean platforms,
// Seaglider dives and Saildrone surface vehicles, from their NetCDF
// deliveries and joins multi-file sets into one time-ordered series.
package platform

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/KI7MT/ocean-lab-apps/internal/grid"
)

var (
	// ErrNoFiles is returned when a file pattern matches nothing.
	ErrNoFiles = errors.New("platform: no files")

	// ErrLengthMismatch is returned when variables sharing a time axis differ
	// in length.
	ErrLengthMismatch = errors.New("platform: variable length mismatch")
)

// Series is a set of variables sampled along one time axis.
type Series struct {
	Time []time.Time
	Vars map[string][]float64
}

// Len returns the number of samples.
func (s *Series) Len() int { return len(s.Time) }

// Var returns the samples of name, or nil.
func (s *Series) Var(name string) []float64 { return s.Vars[name] }

func (s *Series) appendVar(name string, vals []float64) {
	if s.Vars == nil {
		s.Vars = make(map[string][]float64)
	}
	s.Vars[name] = append(s.Vars[name], vals...)
}

// Glob returns the files matching pattern in dir, sorted by name.
func Glob(dir, pattern string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoFiles, pattern, dir)
	}
	sort.Strings(files)
	return files, nil
}

func readValues(nc api.Group, path, name string) ([]float64, *api.Variable, error) {
	v, err := nc.GetVariable(name)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: variable %q: %w", path, name, err)
	}
	vals, err := grid.Values(v)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: variable %q: %w", path, name, err)
	}
	return vals, v, nil
}

func readTimes(nc api.Group, path, name string) ([]time.Time, error) {
	vals, v, err := readValues(nc, path, name)
	if err != nil {
		return nil, err
	}
	units := grid.Units(v)
	if units == "" {
		units = "seconds since 1970-01-01 00:00:00"
	}
	ts, err := grid.DecodeTimes(vals, units)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %q: %w", path, name, err)
	}
	return ts, nil
}

func openFile(path string) (api.Group, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return nc, nil
}

// WriteCSV writes the series as CSV: an RFC 3339 time column followed by
// names in order.
func (s *Series) WriteCSV(w io.Writer, names []string) error {
	header := append([]string{"time"}, names...)
	return writeCSV(w, header, s.Len(), func(i int, row []string) []string {
		row = append(row, s.Time[i].Format(time.RFC3339Nano))
		for _, name := range names {
			row = append(row, formatValue(s.Vars[name][i]))
		}
		return row
	})
}

func writeCSV(w io.Writer, header []string, n int, fill func(i int, row []string) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, 0, len(header))
	for i := 0; i < n; i++ {
		row = fill(i, row[:0])
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

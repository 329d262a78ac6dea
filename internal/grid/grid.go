// Package grid operates on regular time/latitude/longitude fields: finite
// differences, wind stress curl, longitude convention changes, unit
// conversions and nearest-neighbour regridding of curvilinear swaths.
//
// Field data is stored flat in row-major (time, lat, lon) order.
package grid

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/KI7MT/ocean-lab-apps/internal/units"
)

var (
	// ErrShapeMismatch is returned when fields or axes do not line up.
	ErrShapeMismatch = errors.New("grid: shape mismatch")

	// ErrTooFewPoints is returned when an axis is too short to differentiate.
	ErrTooFewPoints = errors.New("grid: need at least 2 points")
)

// Field is a gridded variable on a regular lat/lon grid.
type Field struct {
	Name  string
	Units string
	Time  []time.Time
	Lat   []float64
	Lon   []float64
	Data  []float64
}

// NewField allocates a NaN-filled field for the given axes.
func NewField(name string, t []time.Time, lat, lon []float64) *Field {
	data := make([]float64, len(t)*len(lat)*len(lon))
	for i := range data {
		data[i] = math.NaN()
	}
	return &Field{Name: name, Time: t, Lat: lat, Lon: lon, Data: data}
}

// Shape returns the (time, lat, lon) dimensions.
func (f *Field) Shape() (nt, ny, nx int) {
	return len(f.Time), len(f.Lat), len(f.Lon)
}

// Validate checks that Data matches the axis lengths.
func (f *Field) Validate() error {
	nt, ny, nx := f.Shape()
	if len(f.Data) != nt*ny*nx {
		return fmt.Errorf("%w: %s has %d values for %dx%dx%d grid", ErrShapeMismatch, f.Name, len(f.Data), nt, ny, nx)
	}
	return nil
}

func (f *Field) index(t, y, x int) int {
	return (t*len(f.Lat)+y)*len(f.Lon) + x
}

// At returns the value at time index t, lat index y, lon index x.
func (f *Field) At(t, y, x int) float64 { return f.Data[f.index(t, y, x)] }

// Set stores v at time index t, lat index y, lon index x.
func (f *Field) Set(t, y, x int, v float64) { f.Data[f.index(t, y, x)] = v }

// Frame returns the lat/lon slab for time index t. It aliases Data.
func (f *Field) Frame(t int) []float64 {
	n := len(f.Lat) * len(f.Lon)
	return f.Data[t*n : (t+1)*n]
}

// Clone returns a deep copy of f.
func (f *Field) Clone() *Field {
	c := *f
	c.Time = append([]time.Time(nil), f.Time...)
	c.Lat = append([]float64(nil), f.Lat...)
	c.Lon = append([]float64(nil), f.Lon...)
	c.Data = append([]float64(nil), f.Data...)
	return &c
}

// SameShape reports whether a and b share the same grid dimensions.
func SameShape(a, b *Field) bool {
	at, ay, ax := a.Shape()
	bt, by, bx := b.Shape()
	return at == bt && ay == by && ax == bx && len(a.Data) == len(b.Data)
}

// AdjustLongitude returns a copy of f with longitudes above 180 shifted by
// -360 and the longitude axis sorted ascending, data columns following.
func AdjustLongitude(f *Field) *Field {
	lon := make([]float64, len(f.Lon))
	for i, v := range f.Lon {
		if v > 180 {
			v -= 360
		}
		lon[i] = v
	}
	order := make([]int, len(lon))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return lon[order[a]] < lon[order[b]] })

	out := f.Clone()
	for i, src := range order {
		out.Lon[i] = lon[src]
	}
	nt, ny, _ := f.Shape()
	for t := 0; t < nt; t++ {
		for y := 0; y < ny; y++ {
			for i, src := range order {
				out.Set(t, y, i, f.At(t, y, src))
			}
		}
	}
	return out
}

// ConvertAccumulated converts an hourly accumulated flux field from J m-2 to
// W m-2 in place.
func ConvertAccumulated(f *Field) {
	for i, v := range f.Data {
		f.Data[i] = units.JoulesToWatts(v)
	}
	f.Units = "W m-2"
}

// ToCelsius converts a temperature field from K to °C in place.
func ToCelsius(f *Field) {
	for i, v := range f.Data {
		f.Data[i] = units.KelvinToCelsius(v)
	}
	f.Units = "degC"
}

// Range returns evenly spaced values in [start, stop) like numpy.arange.
func Range(start, stop, step float64) []float64 {
	if step == 0 {
		return nil
	}
	n := int(math.Ceil((stop - start) / step))
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

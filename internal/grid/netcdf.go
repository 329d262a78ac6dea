package grid

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
)

// FillValue is written for missing data, the NetCDF default double fill.
const FillValue = 9.969209968386869e36

// TimeUnits is the time encoding used for written files.
const TimeUnits = "hours since 1900-01-01 00:00:00"

// ErrNoCoordinate is returned when a coordinate variable cannot be found.
var ErrNoCoordinate = errors.New("grid: coordinate variable not found")

var coordAliases = map[string][]string{
	"time": {"time", "valid_time", "t"},
	"lat":  {"latitude", "lat", "y"},
	"lon":  {"longitude", "lon", "x"},
}

// ReadField loads a (time, lat, lon) or (lat, lon) variable from a NetCDF
// file. Packed values are unpacked with scale_factor/add_offset and fill or
// missing values become NaN.
func ReadField(path, varName string) (*Field, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	v, err := nc.GetVariable(varName)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %q: %w", path, varName, err)
	}
	data, err := unpack(v)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %q: %w", path, varName, err)
	}

	f := &Field{Name: varName, Units: attrString(v.Attributes, "units"), Data: data}
	dims := v.Dimensions
	switch len(dims) {
	case 3:
		if f.Time, err = readTime(nc, dims[0]); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		dims = dims[1:]
	case 2:
		f.Time = []time.Time{{}}
	default:
		return nil, fmt.Errorf("%w: %s has %d dimensions, need 2 or 3", ErrShapeMismatch, varName, len(dims))
	}
	if f.Lat, err = readCoord(nc, dims[0], "lat"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Lon, err = readCoord(nc, dims[1], "lon"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// SwathSource names the variables of a curvilinear swath product.
type SwathSource struct {
	Var    string // data variable in each time-step file
	LonVar string // longitude variable in the grid file
	LatVar string // latitude variable in the grid file
}

// BremenAMSR2 is the layout of the University of Bremen AMSR2 sea-ice
// concentration product on the 6.25 km Antarctic grid.
var BremenAMSR2 = SwathSource{
	Var:    "ASI Ice Concentration",
	LonVar: "Longitudes",
	LatVar: "Latitudes",
}

var fileDate = regexp.MustCompile(`(\d{8})`)

// DateFromName extracts the first YYYYMMDD date embedded in a file name.
func DateFromName(path string) (time.Time, error) {
	m := fileDate.FindString(filepath.Base(path))
	if m == "" {
		return time.Time{}, fmt.Errorf("no YYYYMMDD date in %q", filepath.Base(path))
	}
	return time.Parse("20060102", m)
}

// ReadSwath loads one time step per file from paths, taking each step's date
// from the file name, with coordinates from the separate grid file.
func ReadSwath(paths []string, gridPath string, src SwathSource) (*Swath, error) {
	lon, err := readFlat(gridPath, src.LonVar)
	if err != nil {
		return nil, err
	}
	lat, err := readFlat(gridPath, src.LatVar)
	if err != nil {
		return nil, err
	}
	s := &Swath{Name: src.Var, Lon: lon, Lat: lat}
	for _, p := range paths {
		ts, err := DateFromName(p)
		if err != nil {
			return nil, err
		}
		vals, err := readFlat(p, src.Var)
		if err != nil {
			return nil, err
		}
		if len(vals) != len(lon) {
			return nil, fmt.Errorf("%w: %s has %d points, grid has %d", ErrShapeMismatch, p, len(vals), len(lon))
		}
		s.Time = append(s.Time, ts)
		s.Data = append(s.Data, vals...)
	}
	return s, s.Validate()
}

func readFlat(path, varName string) ([]float64, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()
	v, err := nc.GetVariable(varName)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %q: %w", path, varName, err)
	}
	vals, err := unpack(v)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %q: %w", path, varName, err)
	}
	return vals, nil
}

func readCoord(nc api.Group, dim, kind string) ([]float64, error) {
	names := append([]string{dim}, coordAliases[kind]...)
	for _, name := range names {
		v, err := nc.GetVariable(name)
		if err != nil {
			continue
		}
		return unpack(v)
	}
	return nil, fmt.Errorf("%w: %s (dimension %q)", ErrNoCoordinate, kind, dim)
}

func readTime(nc api.Group, dim string) ([]time.Time, error) {
	names := append([]string{dim}, coordAliases["time"]...)
	for _, name := range names {
		v, err := nc.GetVariable(name)
		if err != nil {
			continue
		}
		vals, err := flatten(v.Values)
		if err != nil {
			return nil, err
		}
		return DecodeTimes(vals, attrString(v.Attributes, "units"))
	}
	return nil, fmt.Errorf("%w: time (dimension %q)", ErrNoCoordinate, dim)
}

// DecodeTimes converts CF "<unit> since <reference>" offsets to times.
func DecodeTimes(vals []float64, units string) ([]time.Time, error) {
	unit, ref, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return nil, fmt.Errorf("unsupported time units %q", units)
	}
	var scale time.Duration
	switch strings.ToLower(unit) {
	case "seconds", "second", "s":
		scale = time.Second
	case "minutes", "minute":
		scale = time.Minute
	case "hours", "hour", "h":
		scale = time.Hour
	case "days", "day", "d":
		scale = 24 * time.Hour
	default:
		return nil, fmt.Errorf("unsupported time unit %q", unit)
	}
	epoch, err := parseReference(ref)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(vals))
	for i, v := range vals {
		out[i] = epoch.Add(time.Duration(math.Round(v * float64(scale))))
	}
	return out, nil
}

func parseReference(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), " UTC")
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.9",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006-1-2 15:04:05",
		"2006-1-2",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time reference %q", s)
}

// Values returns a variable's data flattened to float64 in row-major order,
// unpacked and with fill values as NaN.
func Values(v *api.Variable) ([]float64, error) { return unpack(v) }

// Units returns a variable's units attribute, or "".
func Units(v *api.Variable) string { return attrString(v.Attributes, "units") }

// unpack flattens a variable's values to float64 and applies CF packing and
// fill conventions.
func unpack(v *api.Variable) ([]float64, error) {
	vals, err := flatten(v.Values)
	if err != nil {
		return nil, err
	}
	scale, hasScale := attrFloat(v.Attributes, "scale_factor")
	offset, hasOffset := attrFloat(v.Attributes, "add_offset")
	fill, hasFill := attrFloat(v.Attributes, "_FillValue")
	missing, hasMissing := attrFloat(v.Attributes, "missing_value")
	if !hasScale {
		scale = 1
	}
	if !hasOffset {
		offset = 0
	}
	for i, x := range vals {
		if (hasFill && x == fill) || (hasMissing && x == missing) {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = x*scale + offset
	}
	return vals, nil
}

// flatten walks nested numeric slices in row-major order.
func flatten(values any) ([]float64, error) {
	var out []float64
	var walk func(rv reflect.Value) error
	walk = func(rv reflect.Value) error {
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				if err := walk(rv.Index(i)); err != nil {
					return err
				}
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out = append(out, float64(rv.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out = append(out, float64(rv.Uint()))
		case reflect.Float32, reflect.Float64:
			out = append(out, rv.Float())
		default:
			return fmt.Errorf("unsupported value type %s", rv.Type())
		}
		return nil
	}
	if err := walk(reflect.ValueOf(values)); err != nil {
		return nil, err
	}
	return out, nil
}

func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	vals, err := flatten(raw)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func attrString(attrs api.AttributeMap, key string) string {
	if attrs == nil {
		return ""
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return s
}

// WriteFields writes fields sharing one grid to a NetCDF file with time, lat
// and lon coordinate variables. NaN is stored as FillValue.
func WriteFields(path string, fields ...*Field) error {
	if len(fields) == 0 {
		return errors.New("write netcdf: no fields")
	}
	ref := fields[0]
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return err
		}
		if !SameShape(ref, f) {
			return fmt.Errorf("%w: %s and %s", ErrShapeMismatch, ref.Name, f.Name)
		}
	}

	w, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	epoch := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	hours := make([]float64, len(ref.Time))
	for i, t := range ref.Time {
		hours[i] = t.Sub(epoch).Hours()
	}

	vars := []namedVar{
		{"time", coordVar(hours, "time", TimeUnits, "time")},
		{"lat", coordVar(ref.Lat, "lat", "degrees_north", "latitude")},
		{"lon", coordVar(ref.Lon, "lon", "degrees_east", "longitude")},
	}
	for _, f := range fields {
		attrs, err := util.NewOrderedMap(
			[]string{"units", "_FillValue"},
			map[string]any{"units": f.Units, "_FillValue": FillValue},
		)
		if err != nil {
			w.Close()
			return err
		}
		vars = append(vars, namedVar{f.Name, api.Variable{
			Values:     cube(f),
			Dimensions: []string{"time", "lat", "lon"},
			Attributes: attrs,
		}})
	}

	for _, v := range vars {
		if err := w.AddVar(v.name, v.value); err != nil {
			w.Close()
			return fmt.Errorf("write %s: variable %s: %w", path, v.name, err)
		}
	}
	return w.Close()
}

type namedVar struct {
	name  string
	value api.Variable
}

func coordVar(vals []float64, dim, units, standardName string) api.Variable {
	attrs, _ := util.NewOrderedMap(
		[]string{"units", "standard_name"},
		map[string]any{"units": units, "standard_name": standardName},
	)
	return api.Variable{
		Values:     append([]float64(nil), vals...),
		Dimensions: []string{dim},
		Attributes: attrs,
	}
}

// cube reshapes a field's flat data into [time][lat][lon] with NaN filled.
func cube(f *Field) [][][]float64 {
	nt, ny, nx := f.Shape()
	out := make([][][]float64, nt)
	for t := range out {
		out[t] = make([][]float64, ny)
		for y := range out[t] {
			row := make([]float64, nx)
			for x := range row {
				v := f.At(t, y, x)
				if math.IsNaN(v) {
					v = FillValue
				}
				row[x] = v
			}
			out[t][y] = row
		}
	}
	return out
}

package grid

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steps(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC)
	}
	return out
}

func TestGradient(t *testing.T) {
	g, err := Gradient([]float64{1, 2, 4, 7, 11}, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1.5, 2.5, 3.5, 4}, g)

	g, err = Gradient([]float64{0, 1}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, g)

	_, err = Gradient([]float64{1}, 1)
	require.ErrorIs(t, err, ErrTooFewPoints)
}

func TestWindStressCurl_Linear(t *testing.T) {
	lat := []float64{0, 1, 2}
	lon := []float64{10, 11, 12, 13}
	tx := NewField("tx", steps(2), lat, lon)
	ty := NewField("ty", steps(2), lat, lon)
	for ti := 0; ti < 2; ti++ {
		for y := range lat {
			for x := range lon {
				tx.Set(ti, y, x, lat[y])
				ty.Set(ti, y, x, lon[x])
			}
		}
	}

	curl, err := WindStressCurl(tx, ty)
	require.NoError(t, err)

	nt, ny, nx := curl.Shape()
	assert.Equal(t, [3]int{2, 3, 4}, [3]int{nt, ny, nx})
	assert.Equal(t, "N m-3", curl.Units)
	for ti := 0; ti < nt; ti++ {
		for y := range lat {
			want := 1/(MetresPerDegLon*math.Cos(lat[y]*math.Pi/180)) - 1/MetresPerDegLat
			for x := range lon {
				assert.InEpsilon(t, want, curl.At(ti, y, x), 1e-9)
			}
		}
	}
}

func TestWindStressCurl_DescendingLatitude(t *testing.T) {
	lat := []float64{2, 1, 0}
	lon := []float64{0, 1}
	tx := NewField("tx", steps(1), lat, lon)
	ty := NewField("ty", steps(1), lat, lon)
	for y := range lat {
		for x := range lon {
			tx.Set(0, y, x, lat[y])
			ty.Set(0, y, x, 0)
		}
	}

	curl, err := WindStressCurl(tx, ty)
	require.NoError(t, err)
	for _, v := range curl.Data {
		assert.InEpsilon(t, -1/MetresPerDegLat, v, 1e-9)
	}
}

func TestWindStressCurl_ShapeMismatch(t *testing.T) {
	tx := NewField("tx", steps(1), []float64{0, 1}, []float64{0, 1})
	ty := NewField("ty", steps(2), []float64{0, 1}, []float64{0, 1})
	_, err := WindStressCurl(tx, ty)
	require.ErrorIs(t, err, ErrShapeMismatch)

	ty = NewField("ty", steps(1), []float64{0}, []float64{0, 1, 2, 3})
	_, err = WindStressCurl(tx, ty)
	require.ErrorIs(t, err, ErrShapeMismatch)

	bad := NewField("tx", steps(1), []float64{0, 1}, []float64{0, 1})
	bad.Data = bad.Data[:3]
	_, err = WindStressCurl(bad, bad)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestAdjustLongitude(t *testing.T) {
	f := NewField("t2m", steps(1), []float64{0}, []float64{0, 90, 180, 270})
	copy(f.Data, []float64{1, 2, 3, 4})

	out := AdjustLongitude(f)
	assert.Equal(t, []float64{-90, 0, 90, 180}, out.Lon)
	assert.Equal(t, []float64{4, 1, 2, 3}, out.Data)
	assert.Equal(t, []float64{0, 90, 180, 270}, f.Lon, "input must not change")
}

func TestConvertAccumulated(t *testing.T) {
	f := NewField("ssr", steps(1), []float64{0}, []float64{0, 1})
	f.Units = "J m**-2"
	copy(f.Data, []float64{3600, 7200})

	ConvertAccumulated(f)
	assert.Equal(t, []float64{1, 2}, f.Data)
	assert.Equal(t, "W m-2", f.Units)
}

func TestToCelsius(t *testing.T) {
	f := NewField("analysed_sst", steps(1), []float64{0}, []float64{0, 1})
	f.Units = "kelvin"
	copy(f.Data, []float64{273.15, 293.15})

	ToCelsius(f)
	assert.InDeltaSlice(t, []float64{0, 20}, f.Data, 1e-9)
	assert.Equal(t, "degC", f.Units)
}

func TestRange(t *testing.T) {
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75}, Range(0, 1, 0.25))
	assert.Equal(t, []float64{5, 3}, Range(5, 1, -2))
	assert.Nil(t, Range(1, 0, 0.5))
	assert.Nil(t, Range(0, 1, 0))
}

func testSwath() *Swath {
	return &Swath{
		Name: "si",
		Time: steps(2),
		Lon:  []float64{0, 10, 0, 350},
		Lat:  []float64{0, 0, 10, 0},
		Data: []float64{
			1, 2, 0, 4,
			5, 6, 7, 8,
		},
	}
}

func TestRegridNearest(t *testing.T) {
	lon := []float64{-10, 0, 10, 40}
	lat := []float64{0, 10}

	out, err := RegridNearest(testSwath(), lon, lat, 5)
	require.NoError(t, err)

	nt, ny, nx := out.Shape()
	require.Equal(t, 2, nt, "one output frame per input time step")
	require.Equal(t, 2, ny)
	require.Equal(t, 4, nx)

	nan := math.NaN()
	want := [][]float64{
		{4, 1, 2, nan, nan, nan, nan, nan},
		{8, 5, 6, nan, nan, 7, nan, nan},
	}
	for ti, frame := range want {
		got := out.Frame(ti)
		for k, w := range frame {
			if math.IsNaN(w) {
				assert.True(t, math.IsNaN(got[k]), "frame %d cell %d = %v", ti, k, got[k])
				continue
			}
			assert.Equal(t, w, got[k], "frame %d cell %d", ti, k)
		}
	}
}

func TestRegridNearest_NoTolerance(t *testing.T) {
	out, err := RegridNearest(testSwath(), []float64{40}, []float64{0}, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 6}, out.Data)
}

func TestRegridNearest_Invalid(t *testing.T) {
	s := testSwath()
	s.Data = s.Data[:5]
	_, err := RegridNearest(s, []float64{0}, []float64{0}, 1)
	require.ErrorIs(t, err, ErrShapeMismatch)

	s = &Swath{Name: "si", Time: steps(1), Lon: []float64{math.NaN()}, Lat: []float64{0}, Data: []float64{1}}
	_, err = RegridNearest(s, []float64{0}, []float64{0}, 1)
	require.Error(t, err)
}

func TestDecodeTimes(t *testing.T) {
	ts, err := DecodeTimes([]float64{1054200}, "hours since 1900-01-01 00:00:00.0")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 4, 6, 0, 0, 0, 0, time.UTC), ts[0])

	ts, err = DecodeTimes([]float64{86400, 90}, "seconds since 1970-01-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC), ts[0])
	assert.Equal(t, time.Date(1970, 1, 1, 0, 1, 30, 0, time.UTC), ts[1])

	ts, err = DecodeTimes([]float64{60}, "seconds since 1970-1-1 00:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(1970, 1, 1, 0, 1, 0, 0, time.UTC), ts[0])

	_, err = DecodeTimes([]float64{1}, "fortnights since 1900-01-01")
	require.Error(t, err)
	_, err = DecodeTimes([]float64{1}, "kelvin")
	require.Error(t, err)
}

func TestFlatten(t *testing.T) {
	vals, err := flatten([][]int16{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, vals)

	vals, err = flatten(float32(0.5))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, vals)

	_, err = flatten([]string{"a"})
	require.Error(t, err)
}

func TestDateFromName(t *testing.T) {
	ts, err := DateFromName("/data/asi-AMSR2-s6250-20180701-v5.4.nc")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2018, 7, 1, 0, 0, 0, 0, time.UTC), ts)

	_, err = DateFromName("LongitudeLatitudeGrid-s6250-Antarctic.nc")
	require.Error(t, err)
}

func TestWriteReadField(t *testing.T) {
	f := NewField("curl_tau", []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC),
	}, []float64{-60, -59}, []float64{0, 1, 2})
	f.Units = "N m-3"
	for i := range f.Data {
		f.Data[i] = float64(i) * 1e-7
	}
	f.Data[4] = math.NaN()

	path := filepath.Join(t.TempDir(), "curl.nc")
	require.NoError(t, WriteFields(path, f))

	got, err := ReadField(path, "curl_tau")
	require.NoError(t, err)
	assert.Equal(t, f.Time, got.Time)
	assert.Equal(t, f.Lat, got.Lat)
	assert.Equal(t, f.Lon, got.Lon)
	assert.Equal(t, "N m-3", got.Units)
	require.Len(t, got.Data, len(f.Data))
	for i, v := range f.Data {
		if math.IsNaN(v) {
			assert.True(t, math.IsNaN(got.Data[i]))
			continue
		}
		assert.InDelta(t, v, got.Data[i], 1e-15)
	}
}

func TestWriteFields_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.nc")
	require.Error(t, WriteFields(path))

	a := NewField("a", steps(1), []float64{0}, []float64{0})
	b := NewField("b", steps(2), []float64{0}, []float64{0})
	require.ErrorIs(t, WriteFields(path, a, b), ErrShapeMismatch)
}

func writeVar(t *testing.T, path, name string, dims []string, values any) {
	t.Helper()
	w, err := cdf.OpenWriter(path)
	require.NoError(t, err)
	attrs, err := util.NewOrderedMap(nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.AddVar(name, api.Variable{Values: values, Dimensions: dims, Attributes: attrs}))
	require.NoError(t, w.Close())
}

func TestReadSwath(t *testing.T) {
	dir := t.TempDir()
	gridPath := filepath.Join(dir, "grid.nc")
	w, err := cdf.OpenWriter(gridPath)
	require.NoError(t, err)
	empty, err := util.NewOrderedMap(nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.AddVar("lon2d", api.Variable{
		Values: [][]float64{{0, 10}, {350, 20}}, Dimensions: []string{"x", "y"}, Attributes: empty,
	}))
	require.NoError(t, w.AddVar("lat2d", api.Variable{
		Values: [][]float64{{-60, -60}, {-61, -61}}, Dimensions: []string{"x", "y"}, Attributes: empty,
	}))
	require.NoError(t, w.Close())

	day1 := filepath.Join(dir, "asi-s6250-20180701.nc")
	day2 := filepath.Join(dir, "asi-s6250-20180702.nc")
	writeVar(t, day1, "sic", []string{"x", "y"}, [][]float64{{10, 20}, {30, 40}})
	writeVar(t, day2, "sic", []string{"x", "y"}, [][]float64{{50, 60}, {70, 80}})

	src := SwathSource{Var: "sic", LonVar: "lon2d", LatVar: "lat2d"}
	s, err := ReadSwath([]string{day1, day2}, gridPath, src)
	require.NoError(t, err)

	assert.Equal(t, 4, s.Points())
	assert.Equal(t, []float64{0, 10, 350, 20}, s.Lon)
	assert.Equal(t, []time.Time{
		time.Date(2018, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2018, 7, 2, 0, 0, 0, 0, time.UTC),
	}, s.Time)
	assert.Equal(t, []float64{10, 20, 30, 40, 50, 60, 70, 80}, s.Data)
}

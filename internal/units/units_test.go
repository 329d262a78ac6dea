package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnotsToMS_Linear(t *testing.T) {
	assert.Equal(t, 0.0, KnotsToMS(0))
	assert.InDelta(t, 0.514444, KnotsToMS(1), 1e-12)
	assert.InDelta(t, 10*KnotsToMS(1), KnotsToMS(10), 1e-12)
	assert.InDelta(t, -KnotsToMS(3.5), KnotsToMS(-3.5), 1e-12)
}

func TestSpeedTo10m(t *testing.T) {
	// Same height is identity.
	assert.InDelta(t, 7.0, SpeedTo10m(7, DefaultRoughness, 10, 10), 1e-12)

	got := SpeedTo10m(5, DefaultRoughness, DefaultHeight, ReferenceHeight)
	want := 5 * math.Log(10/1.52e-4) / math.Log(1/1.52e-4)
	assert.InDelta(t, want, got, 1e-12)
	assert.Greater(t, got, 5.0)
}

func TestUVFromSpeedDir(t *testing.T) {
	tests := []struct {
		name  string
		dir   float64
		wantU float64
		wantV float64
	}{
		{"towards north", 0, 0, 10},
		{"towards east", 90, 10, 0},
		{"towards south", 180, 0, -10},
		{"towards west", 270, -10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, v := UVFromSpeedDir(10, tt.dir)
			assert.InDelta(t, tt.wantU, u, 1e-9)
			assert.InDelta(t, tt.wantV, v, 1e-9)
		})
	}
}

func TestWindDirFromUV(t *testing.T) {
	assert.InDelta(t, 0.0, WindDirFromUV(1, 0), 1e-12)
	assert.InDelta(t, 90.0, WindDirFromUV(0, 1), 1e-12)
	assert.InDelta(t, 180.0, WindDirFromUV(-1, 0), 1e-12)
	assert.InDelta(t, -90.0, WindDirFromUV(0, -1), 1e-12)

	dirs := WindDirsFromUV([]float64{1, 0, 5}, []float64{0, 1})
	assert.Len(t, dirs, 2)
}

func TestWindDirZero360_Range(t *testing.T) {
	for a := -179.5; a <= 180; a += 0.5 {
		got := WindDirZero360(a)
		assert.GreaterOrEqual(t, got, 0.0, "angle %v", a)
		assert.Less(t, got, 360.0, "angle %v", a)
	}
}

func TestWindDirZero360_Quadrants(t *testing.T) {
	assert.InDelta(t, 0.0, WindDirZero360(90), 1e-12)
	assert.InDelta(t, 90.0, WindDirZero360(0), 1e-12)
	assert.InDelta(t, 270.0, WindDirZero360(180), 1e-12)
	assert.InDelta(t, 180.0, WindDirZero360(-90), 1e-12)
	assert.InDelta(t, 45.0, WindDirZero360(45), 1e-12)
	assert.InDelta(t, 405.0-360, WindDirZero360(45), 1e-12)
	assert.InDelta(t, 315.0, WindDirZero360(135), 1e-12)
	assert.InDelta(t, 225.0, WindDirZero360(-135), 1e-12)
	assert.InDelta(t, 135.0, WindDirZero360(-45), 1e-12)
	assert.True(t, math.IsNaN(WindDirZero360(math.NaN())))
}

func TestWindDirsZero360_InPlace(t *testing.T) {
	dirs := []float64{90, 0, -90}
	out := WindDirsZero360(dirs)
	assert.Equal(t, []float64{0, 90, 180}, out)
	assert.Equal(t, out, dirs)
}

func TestJoulesToWatts(t *testing.T) {
	assert.InDelta(t, 100.0, JoulesToWatts(360000), 1e-12)
}

func TestKelvinToCelsius(t *testing.T) {
	assert.InDelta(t, 0.0, KelvinToCelsius(273.15), 1e-12)
	assert.InDelta(t, 18.5, KelvinToCelsius(291.65), 1e-9)
	assert.True(t, math.IsNaN(KelvinToCelsius(math.NaN())))
}

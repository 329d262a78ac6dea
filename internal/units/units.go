// Package units provides wind speed, wind direction and flux conversions.
package units

import "math"

// KnotToMS is the knot to metres-per-second conversion factor.
const KnotToMS = 0.514444

// Defaults for the logarithmic wind profile height correction.
const (
	DefaultRoughness = 1.52e-4 // open-ocean roughness length, m
	DefaultHeight    = 1.0     // measurement height, m
	ReferenceHeight  = 10.0    // target height, m
)

// SecondsPerHour converts hourly accumulated fluxes (J m-2) to mean power (W m-2).
const SecondsPerHour = 3600.0

// KnotsToMS converts a speed in knots to m/s.
func KnotsToMS(kt float64) float64 {
	return kt * KnotToMS
}

// SpeedTo10m corrects a wind speed measured at height zm to height z10 using a
// neutral logarithmic profile with roughness length z0.
func SpeedTo10m(ws, z0, zm, z10 float64) float64 {
	return ws * (math.Log(z10/z0) / math.Log(zm/z0))
}

// UVFromSpeedDir converts a speed and direction (degrees clockwise from north
// the wind blows towards) into eastward and northward components.
func UVFromSpeedDir(speed, dir float64) (u, v float64) {
	md := 270 - dir
	if md < 0 {
		md += 360
	}
	rad := md * math.Pi / 180
	return -speed * math.Cos(rad), -speed * math.Sin(rad)
}

// WindDirFromUV returns the mathematical angle of the (u, v) vector in degrees,
// counter-clockwise from east, in (-180, 180].
func WindDirFromUV(u, v float64) float64 {
	return math.Atan2(v, u) / math.Pi * 180
}

// WindDirsFromUV applies WindDirFromUV element-wise. The slices must have the
// same length; extra elements of the longer slice are ignored.
func WindDirsFromUV(u, v []float64) []float64 {
	n := min(len(u), len(v))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = WindDirFromUV(u[i], v[i])
	}
	return out
}

// WindDirZero360 converts a mathematical angle in (-180, 180] (counter-clockwise
// from east) into a compass bearing in [0, 360) (clockwise from north).
// NaN passes through unchanged.
func WindDirZero360(dir float64) float64 {
	if math.IsNaN(dir) {
		return dir
	}
	b := math.Mod(90-dir, 360)
	if b < 0 {
		b += 360
	}
	if b >= 360 {
		b -= 360
	}
	return b
}

// WindDirsZero360 applies WindDirZero360 in place and returns dirs.
func WindDirsZero360(dirs []float64) []float64 {
	for i, d := range dirs {
		dirs[i] = WindDirZero360(d)
	}
	return dirs
}

// JoulesToWatts converts an hourly accumulated energy flux (J m-2) to W m-2.
func JoulesToWatts(v float64) float64 {
	return v / SecondsPerHour
}

// ZeroCelsius is 0 °C in kelvin.
const ZeroCelsius = 273.15

// KelvinToCelsius converts a temperature in K to °C.
func KelvinToCelsius(k float64) float64 {
	return k - ZeroCelsius
}

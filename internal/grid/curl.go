package grid

import (
	"fmt"
	"math"
)

// Metres per degree of latitude and of longitude at the equator on the WGS84
// ellipsoid.
const (
	MetresPerDegLat = 110575.0
	MetresPerDegLon = 111303.0
)

// Gradient returns the derivative of values sampled at uniform spacing:
// second-order central differences inside, first-order one-sided at the ends.
func Gradient(values []float64, spacing float64) ([]float64, error) {
	out := make([]float64, len(values))
	if err := gradientInto(out, values, 1, spacing); err != nil {
		return nil, err
	}
	return out, nil
}

// gradientInto differentiates the strided sequence src[0], src[stride], ...
// writing results at the same positions in dst.
func gradientInto(dst, src []float64, stride int, h float64) error {
	n := (len(src) + stride - 1) / stride
	if n < 2 {
		return ErrTooFewPoints
	}
	dst[0] = (src[stride] - src[0]) / h
	for i := 1; i < n-1; i++ {
		dst[i*stride] = (src[(i+1)*stride] - src[(i-1)*stride]) / (2 * h)
	}
	last := (n - 1) * stride
	dst[last] = (src[last] - src[last-stride]) / h
	return nil
}

// WindStressCurl returns curl(τ) = ∂τy/∂x − ∂τx/∂y in N m-3 for wind stress
// components in N m-2. Grid spacing is taken from the first two points of each
// axis and converted to metres, the longitude spacing scaled by cos(lat).
// Spacing keeps its sign. Results using the absolute spacing agree on
// ascending axes only: on a descending latitude axis, as ERA5 delivers, the
// ∂τx/∂y term here has the opposite sign to an |Δlat| implementation.
func WindStressCurl(tx, ty *Field) (*Field, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if err := ty.Validate(); err != nil {
		return nil, err
	}
	if !SameShape(tx, ty) {
		return nil, fmt.Errorf("%w: %s and %s", ErrShapeMismatch, tx.Name, ty.Name)
	}
	nt, ny, nx := tx.Shape()
	if ny < 2 || nx < 2 {
		return nil, fmt.Errorf("wind stress curl: %w (lat %d, lon %d)", ErrTooFewPoints, ny, nx)
	}

	dy := (tx.Lat[1] - tx.Lat[0]) * MetresPerDegLat
	dlon := (tx.Lon[1] - tx.Lon[0]) * MetresPerDegLon

	curl := NewField("curl_tau", tx.Time, tx.Lat, tx.Lon)
	curl.Units = "N m-3"

	dtydx := make([]float64, nx)
	dtxdy := make([]float64, ny*nx)
	for t := 0; t < nt; t++ {
		txf := tx.Frame(t)
		tyf := ty.Frame(t)
		for x := 0; x < nx; x++ {
			if err := gradientInto(dtxdy[x:], txf[x:], nx, dy); err != nil {
				return nil, err
			}
		}
		out := curl.Frame(t)
		for y := 0; y < ny; y++ {
			dx := dlon * math.Cos(tx.Lat[y]*math.Pi/180)
			row := tyf[y*nx : (y+1)*nx]
			if err := gradientInto(dtydx, row, 1, dx); err != nil {
				return nil, err
			}
			for x := 0; x < nx; x++ {
				out[y*nx+x] = dtydx[x] - dtxdy[y*nx+x]
			}
		}
	}
	return curl, nil
}

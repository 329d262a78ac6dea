// Package ocean holds water-column helpers: mixed layer depth from profile
// data and the temperature-salinity density grid drawn behind T-S diagrams.
package ocean

import (
	"math"
)

// Mixed layer defaults: a 0.03 kg/m³ density (or °C) step from the 10 m value.
const (
	DefaultMLDThreshold = 0.03
	DefaultMLDRefDepth  = 10.0
)

// MixedLayerDepth returns, for each profile, the first depth at or below the
// reference depth where the value differs from the reference value by more
// than threshold. Profiles that never cross the threshold yield NaN.
//
// profiles[i] is indexed like depth. The reference level is the depth nearest
// refDepth, ignoring NaN depths.
func MixedLayerDepth(profiles [][]float64, depth []float64, threshold, refDepth float64) []float64 {
	mld := make([]float64, len(profiles))
	ref := nanArgMin(depth, refDepth)
	for i, prof := range profiles {
		mld[i] = math.NaN()
		if ref < 0 || ref >= len(prof) {
			continue
		}
		n := min(len(prof), len(depth))
		for k := ref; k < n; k++ {
			if math.Abs(prof[k]-prof[ref])-threshold > 0 {
				mld[i] = depth[k]
				break
			}
		}
	}
	return mld
}

// nanArgMin returns the index of the depth closest to target, or -1 when all
// depths are NaN.
func nanArgMin(depth []float64, target float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, d := range depth {
		if math.IsNaN(d) {
			continue
		}
		if dist := math.Abs(d - target); best < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// TSGrid is a sigma-t field over a salinity/temperature mesh.
// SigmaT[j][i] is the value at Temperature[j], Salinity[i].
type TSGrid struct {
	Salinity    []float64 // g/kg (PSU)
	Temperature []float64 // °C
	SigmaT      [][]float64
}

// DensityGrid builds the density contour background for a T-S diagram covering
// the given salinity and temperature ranges. Bounds are padded by 1% in
// salinity and 10% in temperature; the salinity axis steps by 0.1 and the
// temperature axis by 1 °C.
func DensityGrid(smin, smax, tmin, tmax float64) TSGrid {
	smin -= 0.01 * smin
	smax += 0.01 * smax
	tmin -= 0.1 * tmin
	tmax += 0.1 * tmax

	xdim := max(int(round1((smax-smin)/0.1+1)), 1)
	ydim := max(int(round1(tmax-tmin+1)), 1)

	si := linspace(1, float64(xdim-1), xdim)
	for i := range si {
		si[i] = si[i]*0.1 + smin
	}
	ti := linspace(1, float64(ydim-1), ydim)
	for j := range ti {
		ti[j] += tmin
	}

	dens := make([][]float64, ydim)
	for j := range dens {
		dens[j] = make([]float64, xdim)
		for i := range dens[j] {
			dens[j][i] = Sigma0(si[i], ti[j])
		}
	}
	return TSGrid{Salinity: si, Temperature: ti, SigmaT: dens}
}

// Sigma0 returns the surface density anomaly ρ(S, T, 0) − 1000 in kg/m³ from
// the UNESCO 1981 (EOS-80) one-atmosphere equation of state.
func Sigma0(s, t float64) float64 {
	return Rho0(s, t) - 1000
}

// Rho0 returns seawater density at zero pressure in kg/m³.
func Rho0(s, t float64) float64 {
	t2 := t * t
	t3 := t2 * t
	t4 := t3 * t
	t5 := t4 * t

	rhoW := 999.842594 + 6.793952e-2*t - 9.095290e-3*t2 + 1.001685e-4*t3 -
		1.120083e-6*t4 + 6.536332e-9*t5
	a := 8.24493e-1 - 4.0899e-3*t + 7.6438e-5*t2 - 8.2467e-7*t3 + 5.3875e-9*t4
	b := -5.72466e-3 + 1.0227e-4*t - 1.6546e-6*t2
	const c = 4.8314e-4

	return rhoW + a*s + b*s*math.Sqrt(s) + c*s*s
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// linspace returns n evenly spaced values over [start, stop].
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

package grid

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// Swath is a time series of scattered samples on a fixed curvilinear grid,
// for example a polar stereographic sea-ice product.
type Swath struct {
	Name  string
	Units string
	Time  []time.Time
	Lon   []float64 // per point, degrees
	Lat   []float64 // per point, degrees
	Data  []float64 // len(Time) * len(Lon), time-major
}

// Points returns the number of source points per time step.
func (s *Swath) Points() int { return len(s.Lon) }

// Validate checks coordinate and data lengths.
func (s *Swath) Validate() error {
	if len(s.Lat) != len(s.Lon) {
		return fmt.Errorf("%w: %d lons, %d lats", ErrShapeMismatch, len(s.Lon), len(s.Lat))
	}
	if len(s.Data) != len(s.Time)*len(s.Lon) {
		return fmt.Errorf("%w: %s has %d values for %d steps of %d points",
			ErrShapeMismatch, s.Name, len(s.Data), len(s.Time), len(s.Lon))
	}
	return nil
}

// RegridNearest interpolates every time step of src onto the regular lon/lat
// grid by nearest neighbour in degree space. Source longitudes above 180 are
// wrapped to the -180..180 convention first. Cells whose nearest source point
// lies farther than tolerance degrees, and cells whose value is 0 or NaN,
// become NaN. A tolerance of zero or less disables the distance check.
func RegridNearest(src *Swath, lon, lat []float64, tolerance float64) (*Field, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	pts := make(swathPoints, 0, src.Points())
	for i := range src.Lon {
		x, y := src.Lon[i], src.Lat[i]
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		if x > 180 {
			x -= 360
		}
		pts = append(pts, swathPoint{lon: x, lat: y, idx: i})
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("regrid %s: no valid source coordinates", src.Name)
	}
	tree := kdtree.New(pts, false)

	// The source grid is fixed, so the nearest point of each cell is found once
	// and reused for every time step.
	maxDist2 := math.Inf(1)
	if tolerance > 0 {
		maxDist2 = tolerance * tolerance
	}
	nearest := make([]int, len(lat)*len(lon))
	for y, la := range lat {
		for x, lo := range lon {
			c, d2 := tree.Nearest(swathPoint{lon: lo, lat: la})
			k := y*len(lon) + x
			if c == nil || d2 > maxDist2 {
				nearest[k] = -1
				continue
			}
			nearest[k] = c.(swathPoint).idx
		}
	}

	out := NewField(src.Name, src.Time, lat, lon)
	out.Units = src.Units
	n := src.Points()
	for t := range src.Time {
		frame := src.Data[t*n : (t+1)*n]
		dst := out.Frame(t)
		for k, idx := range nearest {
			if idx < 0 {
				continue
			}
			if v := frame[idx]; v != 0 && !math.IsNaN(v) {
				dst[k] = v
			}
		}
	}
	return out, nil
}

// swathPoint is a source sample location in the k-d tree.
type swathPoint struct {
	lon, lat float64
	idx      int
}

func (p swathPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(swathPoint)
	switch d {
	case 0:
		return p.lon - q.lon
	case 1:
		return p.lat - q.lat
	default:
		panic("illegal dimension")
	}
}

func (p swathPoint) Dims() int { return 2 }

// Distance returns the squared Euclidean distance in degrees.
func (p swathPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(swathPoint)
	dx := p.lon - q.lon
	dy := p.lat - q.lat
	return dx*dx + dy*dy
}

type swathPoints []swathPoint

func (p swathPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p swathPoints) Len() int                              { return len(p) }
func (p swathPoints) Pivot(d kdtree.Dim) int                { return swathPlane{swathPoints: p, Dim: d}.Pivot() }
func (p swathPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// swathPlane sorts points along one dimension for median partitioning.
type swathPlane struct {
	kdtree.Dim
	swathPoints
}

func (p swathPlane) Less(i, j int) bool {
	if p.Dim == 0 {
		return p.swathPoints[i].lon < p.swathPoints[j].lon
	}
	return p.swathPoints[i].lat < p.swathPoints[j].lat
}

func (p swathPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p swathPlane) Slice(start, end int) kdtree.SortSlicer {
	p.swathPoints = p.swathPoints[start:end]
	return p
}

func (p swathPlane) Swap(i, j int) {
	p.swathPoints[i], p.swathPoints[j] = p.swathPoints[j], p.swathPoints[i]
}

// Package scanpath turns a region and sweep into an ordered list of
// waypoints, derives the boundary-only path used for clearance checks, and
// reads and writes both as path files.
package scanpath

import (
	"fmt"
	"math"

	"github.com/mastercactapus/fieldmap/coord"
	"github.com/mastercactapus/fieldmap/region"
)

// stepTolerance keeps an exact division (e.g. 0.3/0.1) from losing its last
// grid line to float error.
const stepTolerance = 1e-9

// MaxPoints caps the number of waypoints a plan may hold, both per axis and
// in total. Larger grids are rejected with a ConfigError before anything is
// allocated.
const MaxPoints = 1_000_000

// Column is a run of consecutive in-plane locations sharing the same X.
// Start and Len index the in-plane sequence, not the full point list.
type Column struct {
	X          float64
	Start, Len int
}

// Traversal records how a plan was laid out.
type Traversal struct {
	Shape region.Shape

	// Angles is the number of per-angle runs (1 for custom paths).
	Angles int

	// InPlane is the number of in-plane locations visited per angle run.
	InPlane int

	// Depths holds the z positions in ascending order.
	Depths []float64

	// Columns partitions the in-plane sequence; empty for custom paths.
	Columns []Column
}

// A Plan is the full ordered sweep plus its traversal metadata.
type Plan struct {
	Points    []coord.Waypoint
	Traversal Traversal
}

type location struct{ x, y, r float64 }

// Generate builds the full sweep for r.
//
// In-plane locations are visited column by column (X), alternating the
// direction of Y on every column. At each location Z is swept across its
// whole range, alternating direction on every location. For rectangular and
// cylindrical regions the whole in-plane run is repeated once per angle.
//
// Generate is a pure function: the same inputs always give the same plan.
func Generate(r region.Region, s region.Sweep) (*Plan, error) {
	if r == nil {
		return nil, &region.ConfigError{Field: "shape", Msg: "no region"}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	_, custom := r.(region.Path)
	if err := s.Validate(!custom); err != nil {
		return nil, err
	}

	if err := checkSize(r, s); err != nil {
		return nil, err
	}

	var (
		locs []location
		cols []Column
	)
	switch reg := r.(type) {
	case region.Rect:
		locs, cols = snake(steps(reg.XRange, reg.XSpacing), steps(reg.YRange, reg.YSpacing), reg.Contains)
	case region.Cylinder:
		axis := steps(2*reg.Radius, reg.Spacing)
		locs, cols = snake(axis, axis, reg.Contains)
	case region.Path:
		locs = make([]location, len(reg.Points))
		for i, p := range reg.Points {
			locs[i] = location{x: p.X, y: p.Y, r: p.R}
		}
	default:
		return nil, &region.ConfigError{Field: "shape", Msg: "unsupported region"}
	}
	if len(locs) == 0 {
		return nil, &region.ConfigError{Field: "shape", Msg: "region contains no grid points"}
	}

	angles := s.Angles
	if custom {
		angles = []float64{math.NaN()} // rotation comes from each location
	}
	depths := steps(s.ZRange, s.ZSpacing)

	points := make([]coord.Waypoint, 0, len(angles)*len(locs)*len(depths))
	ascending := true
	for _, angle := range angles {
		for _, l := range locs {
			rot := angle
			if custom {
				rot = l.r
			}
			for j := range depths {
				k := j
				if !ascending {
					k = len(depths) - 1 - j
				}
				points = append(points, coord.Waypoint{X: l.x, Y: l.y, Z: depths[k], R: rot})
			}
			ascending = !ascending
		}
	}

	return &Plan{
		Points: points,
		Traversal: Traversal{
			Shape:   r.Shape(),
			Angles:  len(angles),
			InPlane: len(locs),
			Depths:  depths,
			Columns: cols,
		},
	}, nil
}

// count returns the number of positions steps would produce, or false if
// that is not finite or exceeds MaxPoints.
func count(span, spacing float64) (float64, bool) {
	n := math.Floor(span/spacing+stepTolerance) + 1
	if math.IsNaN(n) || n > MaxPoints {
		return n, false
	}
	return n, true
}

func checkSize(r region.Region, s region.Sweep) error {
	tooLarge := func(field string, n float64) error {
		return &region.ConfigError{Field: field, Msg: fmt.Sprintf("grid too large: %g points exceeds %d", n, MaxPoints)}
	}
	nz, ok := count(s.ZRange, s.ZSpacing)
	if !ok {
		return tooLarge("z_spacing", nz)
	}

	var inPlane float64
	angles := float64(len(s.Angles))
	switch reg := r.(type) {
	case region.Rect:
		nx, ok := count(reg.XRange, reg.XSpacing)
		if !ok {
			return tooLarge("x_spacing", nx)
		}
		ny, ok := count(reg.YRange, reg.YSpacing)
		if !ok {
			return tooLarge("y_spacing", ny)
		}
		inPlane = nx * ny
	case region.Cylinder:
		n, ok := count(2*reg.Radius, reg.Spacing)
		if !ok {
			return tooLarge("xy_spacing", n)
		}
		inPlane = n * n
	case region.Path:
		inPlane = float64(len(reg.Points))
		angles = 1
	}
	if total := inPlane * nz * angles; total > MaxPoints {
		return tooLarge("shape", total)
	}
	return nil
}

// steps returns ⌊span/spacing⌋+1 positions starting at -span/2. When spacing
// does not divide span the far end is not reached; it is never snapped.
func steps(span, spacing float64) []float64 {
	n := int(math.Floor(span/spacing+stepTolerance)) + 1
	res := make([]float64, n)
	start := -span / 2
	for i := range res {
		res[i] = start + float64(i)*spacing
	}
	return res
}

// snake walks xs in order and ys alternately up and down, keeping only the
// points accepted by keep. Columns with no accepted point are dropped and do
// not flip the direction.
func snake(xs, ys []float64, keep func(x, y float64) bool) ([]location, []Column) {
	var (
		locs []location
		cols []Column
	)
	ascending := true
	for _, x := range xs {
		start := len(locs)
		for j := range ys {
			k := j
			if !ascending {
				k = len(ys) - 1 - j
			}
			if keep(x, ys[k]) {
				locs = append(locs, location{x: x, y: ys[k]})
			}
		}
		if len(locs) == start {
			continue
		}
		cols = append(cols, Column{X: x, Start: start, Len: len(locs) - start})
		ascending = !ascending
	}
	return locs, cols
}

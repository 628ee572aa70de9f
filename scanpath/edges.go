package scanpath

import (
	"fmt"

	"github.com/mastercactapus/fieldmap/coord"
	"github.com/mastercactapus/fieldmap/region"
)

// Edges derives the boundary-only path from a full sweep.
//
// Only the first angle run is used. Every boundary point is a position that
// also occurs in the full sweep at the lowest or highest depth.
//
// For rectangular and cylindrical sweeps each level (lowest depth, then
// highest) goes out along one end of every column and back along the other
// end, giving two points per column per level. Consecutive identical points
// are collapsed, which only happens for columns with a single location; with
// no such column the result has exactly 4 points per column.
//
// For custom paths each level takes one point per distinct location, going
// forward at the lowest depth and back at the highest.
func Edges(points []coord.Waypoint, t Traversal) ([]coord.Waypoint, error) {
	if len(points) == 0 {
		return nil, &region.ConfigError{Field: "path", Msg: "no points to bound"}
	}
	depths := len(t.Depths)
	if depths == 0 || t.Angles < 1 || t.InPlane*depths*t.Angles != len(points) {
		return nil, &region.ConfigError{
			Field: "path",
			Msg:   fmt.Sprintf("traversal (%d locations x %d depths x %d angles) does not match %d points", t.InPlane, depths, t.Angles, len(points)),
		}
	}

	locs := make([]coord.Waypoint, t.InPlane)
	for i := range locs {
		locs[i] = points[i*depths]
	}
	zMin, zMax := t.Depths[0], t.Depths[depths-1]

	var res []coord.Waypoint
	add := func(w coord.Waypoint, z float64) {
		w.Z = z
		if n := len(res); n > 0 && res[n-1] == w {
			return
		}
		res = append(res, w)
	}

	if t.Shape == region.ShapeCustom {
		for i, l := range locs {
			if i == 0 || !l.SameXY(locs[i-1]) {
				add(l, zMin)
			}
		}
		for i := len(locs) - 1; i >= 0; i-- {
			if i == len(locs)-1 || !locs[i].SameXY(locs[i+1]) {
				add(locs[i], zMax)
			}
		}
		return res, nil
	}

	if len(t.Columns) == 0 {
		return nil, &region.ConfigError{Field: "path", Msg: "traversal has no columns"}
	}
	for _, c := range t.Columns {
		if c.Len < 1 || c.Start < 0 || c.Start+c.Len > len(locs) {
			return nil, &region.ConfigError{Field: "path", Msg: fmt.Sprintf("column at x=%v is out of range", c.X)}
		}
	}

	// Columns alternate direction, so the first location of an even column
	// and the last of an odd one lie on the same side of the region.
	first := func(c Column) coord.Waypoint { return locs[c.Start] }
	last := func(c Column) coord.Waypoint { return locs[c.Start+c.Len-1] }
	for _, z := range []float64{zMin, zMax} {
		for i, c := range t.Columns {
			if i%2 == 0 {
				add(first(c), z)
			} else {
				add(last(c), z)
			}
		}
		for i := len(t.Columns) - 1; i >= 0; i-- {
			c := t.Columns[i]
			if i%2 == 0 {
				add(last(c), z)
			} else {
				add(first(c), z)
			}
		}
	}
	return res, nil
}

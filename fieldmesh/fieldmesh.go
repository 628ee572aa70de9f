// Package fieldmesh interpolates acquired readings across one plane of a
// sweep using a Delaunay triangulation.
package fieldmesh

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fogleman/delaunay"

	"github.com/mastercactapus/fieldmap/coord"
	"github.com/mastercactapus/fieldmap/machine"
)

// Sample is one reading at an in-plane location.
type Sample struct {
	X, Y  float64
	Value float64
}

// Mesh answers value queries inside the convex hull of its samples.
type Mesh struct {
	minX, minY, maxX, maxY float64
	triangles              []triangle
}

// New triangulates samples. Samples sharing a location are averaged. At
// least three distinct, non-collinear locations are required.
func New(samples []Sample) (*Mesh, error) {
	type acc struct {
		sum float64
		n   int
	}
	byXY := make(map[delaunay.Point]*acc, len(samples))
	var pts []delaunay.Point
	for _, s := range samples {
		p := delaunay.Point{X: s.X, Y: s.Y}
		a := byXY[p]
		if a == nil {
			a = &acc{}
			byXY[p] = a
			pts = append(pts, p)
		}
		a.sum += s.Value
		a.n++
	}
	if len(pts) < 3 {
		return nil, errors.New("need at least 3 distinct locations to build a mesh")
	}

	tri, err := delaunay.Triangulate(pts)
	if err != nil {
		return nil, fmt.Errorf("triangulate: %w", err)
	}
	if len(tri.Triangles) == 0 {
		return nil, errors.New("samples are collinear")
	}

	point := func(i int) coord.Point {
		p := tri.Points[i]
		a := byXY[p]
		return coord.Point{X: p.X, Y: p.Y, Z: a.sum / float64(a.n)}
	}
	m := &Mesh{minX: pts[0].X, maxX: pts[0].X, minY: pts[0].Y, maxY: pts[0].Y}
	for _, p := range pts {
		m.minX = min(m.minX, p.X)
		m.maxX = max(m.maxX, p.X)
		m.minY = min(m.minY, p.Y)
		m.maxY = max(m.maxY, p.Y)
	}
	m.minX -= edgeTolerance
	m.minY -= edgeTolerance
	m.maxX += edgeTolerance
	m.maxY += edgeTolerance

	m.triangles = make([]triangle, 0, len(tri.Triangles)/3)
	for i := 0; i < len(tri.Triangles); i += 3 {
		m.triangles = append(m.triangles, triangle{
			a: point(tri.Triangles[i]),
			b: point(tri.Triangles[i+1]),
			c: point(tri.Triangles[i+2]),
		})
	}
	return m, nil
}

// Value returns the interpolated value at (x, y), or false outside the
// sampled area.
func (m *Mesh) Value(x, y float64) (float64, bool) {
	if x < m.minX || m.maxX < x || y < m.minY || m.maxY < y {
		return 0, false
	}
	for _, t := range m.triangles {
		if t.contains(x, y) {
			return t.value(x, y), true
		}
	}
	return 0, false
}

// Plane returns the acquired samples taken at depth z and rotation r.
func Plane(recs []machine.Record, z, r float64) []Sample {
	var res []Sample
	for _, rec := range recs {
		if rec.Status != machine.Acquired || rec.Z != z || rec.R != r {
			continue
		}
		res = append(res, Sample{X: rec.X, Y: rec.Y, Value: rec.Value})
	}
	return res
}

// Planes lists the distinct (z, rotation) pairs with acquired data, ordered
// by rotation then depth.
func Planes(recs []machine.Record) [][2]float64 {
	seen := map[[2]float64]bool{}
	var res [][2]float64
	for _, rec := range recs {
		k := [2]float64{rec.Z, rec.R}
		if rec.Status != machine.Acquired || seen[k] {
			continue
		}
		seen[k] = true
		res = append(res, k)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i][1] != res[j][1] {
			return res[i][1] < res[j][1]
		}
		return res[i][0] < res[j][0]
	})
	return res
}

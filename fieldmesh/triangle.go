package fieldmesh

import (
	"math"

	"github.com/mastercactapus/fieldmap/coord"
)

// edgeTolerance is how far outside a triangle, in mm, a query still counts as
// inside.
const edgeTolerance = 0.001

// triangle holds three samples as points whose Z is the sample value.
type triangle struct{ a, b, c coord.Point }

// weights returns the barycentric coordinates of (x, y).
func (t triangle) weights(x, y float64) (wa, wb, wc float64) {
	det := (t.b.Y-t.c.Y)*(t.a.X-t.c.X) + (t.c.X-t.b.X)*(t.a.Y-t.c.Y)
	wa = ((t.b.Y-t.c.Y)*(x-t.c.X) + (t.c.X-t.b.X)*(y-t.c.Y)) / det
	wb = ((t.c.Y-t.a.Y)*(x-t.c.X) + (t.a.X-t.c.X)*(y-t.c.Y)) / det
	return wa, wb, 1 - wa - wb
}

// contains reports whether (x, y) lies inside the triangle or within
// edgeTolerance of one of its edges.
func (t triangle) contains(x, y float64) bool {
	wa, wb, wc := t.weights(x, y)
	if math.IsNaN(wa) || math.IsNaN(wb) {
		return false
	}
	if wa >= 0 && wb >= 0 && wc >= 0 {
		return true
	}
	return t.a.DistanceXY(x, y) <= edgeTolerance ||
		t.b.DistanceXY(x, y) <= edgeTolerance ||
		t.c.DistanceXY(x, y) <= edgeTolerance ||
		segmentDistance(t.a, t.b, x, y) <= edgeTolerance ||
		segmentDistance(t.b, t.c, x, y) <= edgeTolerance ||
		segmentDistance(t.c, t.a, x, y) <= edgeTolerance
}

// value returns the value on the plane through the three samples.
func (t triangle) value(x, y float64) float64 {
	n := t.c.Sub(t.a).Cross(t.b.Sub(t.a))
	return (n.Dot(t.a) - n.X*x - n.Y*y) / n.Z
}

// segmentDistance returns the in-plane distance from (x, y) to segment pq.
func segmentDistance(p, q coord.Point, x, y float64) float64 {
	dx, dy := q.X-p.X, q.Y-p.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return p.DistanceXY(x, y)
	}
	u := ((x-p.X)*dx + (y-p.Y)*dy) / l2
	u = math.Max(0, math.Min(1, u))
	return coord.Point{X: p.X + u*dx, Y: p.Y + u*dy}.DistanceXY(x, y)
}

package coord

import "math"

// A Waypoint is a single target position of a sweep: X, Y, Z in millimetres
// and R (rotation) in degrees.
//
// Waypoints are values; nothing in this module mutates one after the planner
// has emitted it.
type Waypoint struct {
	X, Y, Z float64
	R       float64
}

// Point returns the linear part of w.
func (w Waypoint) Point() Point { return Point{X: w.X, Y: w.Y, Z: w.Z} }

// SameXY reports whether w and b share the same in-plane location.
func (w Waypoint) SameXY(b Waypoint) bool { return w.X == b.X && w.Y == b.Y }

// Delta returns the absolute per-axis change from w to b.
func (w Waypoint) Delta(b Waypoint) Waypoint {
	return Waypoint{
		X: math.Abs(b.X - w.X),
		Y: math.Abs(b.Y - w.Y),
		Z: math.Abs(b.Z - w.Z),
		R: math.Abs(b.R - w.R),
	}
}

// TravelXY returns the in-plane distance covered by visiting points in order.
func TravelXY(points []Waypoint) float64 {
	var d float64
	for i := 1; i < len(points); i++ {
		d += points[i-1].Point().DistanceXY(points[i].X, points[i].Y)
	}
	return d
}

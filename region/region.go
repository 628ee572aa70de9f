// Package region describes what a sweep covers: the in-plane region shape
// and the sweep parameters shared by every shape.
package region

import "math"

// Shape names a region kind.
type Shape string

const (
	ShapeRectangular Shape = "rectangular"
	ShapeCylindrical Shape = "cylindrical"
	ShapeCustom      Shape = "custom"
)

// A Region is one of Rect, Cylinder or Path.
type Region interface {
	Shape() Shape
	Validate() error

	isRegion()
}

// Rect is a rectangular region centered on the mapper origin.
type Rect struct {
	XRange, XSpacing float64
	YRange, YSpacing float64
}

// Cylinder is a circular region of the given radius centered on the mapper
// origin, sampled on a square grid of Spacing.
type Cylinder struct {
	Radius  float64
	Spacing float64
}

// XYR is one entry of a custom path: an in-plane location and the rotation
// to use there.
type XYR struct{ X, Y, R float64 }

// Path is a user supplied, already ordered list of in-plane locations. The
// rotation is per point rather than swept globally.
type Path struct {
	Points []XYR
}

func (Rect) Shape() Shape     { return ShapeRectangular }
func (Cylinder) Shape() Shape { return ShapeCylindrical }
func (Path) Shape() Shape     { return ShapeCustom }

func (Rect) isRegion()     {}
func (Cylinder) isRegion() {}
func (Path) isRegion()     {}

func (r Rect) Validate() error {
	if err := positive("x_range", r.XRange); err != nil {
		return err
	}
	if err := positive("x_spacing", r.XSpacing); err != nil {
		return err
	}
	if err := positive("y_range", r.YRange); err != nil {
		return err
	}
	return positive("y_spacing", r.YSpacing)
}

func (c Cylinder) Validate() error {
	if err := positive("radius", c.Radius); err != nil {
		return err
	}
	return positive("xy_spacing", c.Spacing)
}

func (p Path) Validate() error {
	if len(p.Points) < 1 {
		return invalidf("custom_xyr_path", "custom path has no points")
	}
	for i, pt := range p.Points {
		if !finite(pt.X) || !finite(pt.Y) || !finite(pt.R) {
			return invalidf("custom_xyr_path", "point %d is not a finite number", i)
		}
	}
	return nil
}

// Contains reports whether (x, y) lies inside the declared boundary.
// The edge counts as inside.
func (r Rect) Contains(x, y float64) bool {
	return math.Abs(x) <= r.XRange/2 && math.Abs(y) <= r.YRange/2
}

// inclusionTolerance absorbs float error on grid points that sit exactly on
// the circle.
const inclusionTolerance = 1e-9

// Contains reports whether x²+y² ≤ radius². The edge counts as inside.
func (c Cylinder) Contains(x, y float64) bool {
	r2 := c.Radius * c.Radius
	return x*x+y*y <= r2*(1+inclusionTolerance)
}

func positive(field string, v float64) error {
	if !finite(v) || v <= 0 {
		return invalidf(field, "must be a positive number, got %v", v)
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

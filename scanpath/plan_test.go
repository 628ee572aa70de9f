package scanpath

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/fieldmap/coord"
	"github.com/mastercactapus/fieldmap/region"
)

func sweep(angles ...float64) region.Sweep {
	return region.Sweep{
		ZRange:   20,
		ZSpacing: 20,
		Angles:   angles,
		Limits:   region.DefaultLimits(),
	}
}

func TestGenerate_RectangularPositions(t *testing.T) {
	plan, err := Generate(region.Rect{XRange: 100, XSpacing: 50, YRange: 100, YSpacing: 50}, sweep(0))
	require.NoError(t, err)

	xs := map[float64]bool{}
	for _, p := range plan.Points {
		xs[p.X] = true
	}
	assert.Equal(t, map[float64]bool{-50: true, 0: true, 50: true}, xs)

	assert.Len(t, plan.Points, 3*3*2*1)
	assert.Equal(t, []coord.Waypoint{
		{X: -50, Y: -50, Z: -10},
		{X: -50, Y: -50, Z: 10},
		{X: -50, Y: 0, Z: 10},
		{X: -50, Y: 0, Z: -10},
		{X: -50, Y: 50, Z: -10},
		{X: -50, Y: 50, Z: 10},
		{X: 0, Y: 50, Z: 10},
	}, plan.Points[:7])
	assert.Equal(t, []float64{-10, 10}, plan.Traversal.Depths)
	assert.Len(t, plan.Traversal.Columns, 3)
}

func TestGenerate_RectangularCount(t *testing.T) {
	r := region.Rect{XRange: 40, XSpacing: 10, YRange: 30, YSpacing: 5}
	s := region.Sweep{ZRange: 60, ZSpacing: 15, Angles: []float64{0, 45, 90}}

	plan, err := Generate(r, s)
	require.NoError(t, err)

	want := (40/10 + 1) * (30/5 + 1) * (60/15 + 1) * 3
	assert.Len(t, plan.Points, want)
	for _, p := range plan.Points {
		assert.True(t, r.Contains(p.X, p.Y), "%+v outside region", p)
	}
}

func TestGenerate_UnevenSpacing(t *testing.T) {
	plan, err := Generate(region.Rect{XRange: 100, XSpacing: 30, YRange: 10, YSpacing: 10}, sweep(0))
	require.NoError(t, err)

	var xs []float64
	for _, c := range plan.Traversal.Columns {
		xs = append(xs, c.X)
	}
	assert.Equal(t, []float64{-50, -20, 10, 40}, xs)
}

func TestGenerate_CylinderBoundary(t *testing.T) {
	cyl := region.Cylinder{Radius: 50, Spacing: 25}
	plan, err := Generate(cyl, sweep(0, 90))
	require.NoError(t, err)

	has := func(x, y float64) bool {
		for _, p := range plan.Points {
			if p.X == x && p.Y == y {
				return true
			}
		}
		return false
	}
	assert.False(t, has(50, 50))
	assert.True(t, has(50, 0))
	assert.True(t, has(0, -50))

	// columns of 1, 3, 5, 3 and 1 locations
	assert.Equal(t, 13, plan.Traversal.InPlane)
	assert.Len(t, plan.Points, 13*2*2)
	for _, p := range plan.Points {
		assert.True(t, cyl.Contains(p.X, p.Y), "%+v outside radius", p)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	r := region.Cylinder{Radius: 33, Spacing: 7}
	s := region.Sweep{ZRange: 12, ZSpacing: 3, Angles: []float64{0, 180}}

	a, err := Generate(r, s)
	require.NoError(t, err)
	b, err := Generate(r, s)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("plans differ (-first +second):\n%s", diff)
	}
}

// Within one angle run, consecutive waypoints change at most one axis group
// (in-plane, depth or rotation). On a rectangle no axis moves by more than one
// spacing step; a circle's columns differ in length, so only depth is checked.
func TestGenerate_Boustrophedon(t *testing.T) {
	for _, tc := range []struct {
		name    string
		r       region.Region
		spacing float64
	}{
		{"rect", region.Rect{XRange: 40, XSpacing: 10, YRange: 20, YSpacing: 10}, 10},
		{"cylinder", region.Cylinder{Radius: 30, Spacing: 10}, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := region.Sweep{ZRange: 30, ZSpacing: 10, Angles: []float64{0}}
			plan, err := Generate(tc.r, s)
			require.NoError(t, err)

			const eps = 1e-9
			for i := 1; i < len(plan.Points); i++ {
				d := plan.Points[i-1].Delta(plan.Points[i])
				groups := 0
				if d.X > 0 || d.Y > 0 {
					groups++
				}
				if d.Z > 0 {
					groups++
				}
				if d.R > 0 {
					groups++
				}
				assert.LessOrEqual(t, groups, 1, "step %d: %+v -> %+v", i, plan.Points[i-1], plan.Points[i])
				if tc.spacing > 0 {
					assert.LessOrEqual(t, d.X, tc.spacing+eps, "step %d", i)
					assert.LessOrEqual(t, d.Y, tc.spacing+eps, "step %d", i)
				}
				assert.LessOrEqual(t, d.Z, s.ZSpacing+eps, "step %d", i)
			}
		})
	}
}

func TestGenerate_SnakeTravelsLessThanRaster(t *testing.T) {
	plan, err := Generate(region.Rect{XRange: 100, XSpacing: 10, YRange: 100, YSpacing: 10}, sweep(0))
	require.NoError(t, err)

	var raster []coord.Waypoint
	for i := 0; i <= 10; i++ {
		for j := 0; j <= 10; j++ {
			raster = append(raster, coord.Waypoint{X: -50 + float64(i)*10, Y: -50 + float64(j)*10})
		}
	}
	assert.Less(t, coord.TravelXY(plan.Points), coord.TravelXY(raster))
}

func TestGenerate_Custom(t *testing.T) {
	path := region.Path{Points: []region.XYR{{X: 0, Y: 0, R: 0}, {X: 10, Y: 0, R: 45}, {X: 10, Y: 0, R: 90}, {X: 20, Y: 5, R: 180}}}

	// angles are ignored for custom paths
	plan, err := Generate(path, sweep())
	require.NoError(t, err)

	assert.Equal(t, []coord.Waypoint{
		{X: 0, Y: 0, Z: -10, R: 0},
		{X: 0, Y: 0, Z: 10, R: 0},
		{X: 10, Y: 0, Z: 10, R: 45},
		{X: 10, Y: 0, Z: -10, R: 45},
		{X: 10, Y: 0, Z: -10, R: 90},
		{X: 10, Y: 0, Z: 10, R: 90},
		{X: 20, Y: 5, Z: 10, R: 180},
		{X: 20, Y: 5, Z: -10, R: 180},
	}, plan.Points)
	assert.Equal(t, 1, plan.Traversal.Angles)
	assert.Empty(t, plan.Traversal.Columns)
}

func TestGenerate_ConfigErrors(t *testing.T) {
	rect := region.Rect{XRange: 10, XSpacing: 5, YRange: 10, YSpacing: 5}
	for name, tc := range map[string]struct {
		r region.Region
		s region.Sweep
	}{
		"zero spacing":    {region.Rect{XRange: 10, XSpacing: 0, YRange: 10, YSpacing: 5}, sweep(0)},
		"negative range":  {region.Rect{XRange: -10, XSpacing: 5, YRange: 10, YSpacing: 5}, sweep(0)},
		"zero radius":     {region.Cylinder{Radius: 0, Spacing: 5}, sweep(0)},
		"no angles":       {rect, sweep()},
		"repeated angles": {rect, sweep(0, 0)},
		"zero z spacing":  {rect, region.Sweep{ZRange: 10, Angles: []float64{0}}},
		"empty custom":    {region.Path{}, sweep()},
		"nan custom":      {region.Path{Points: []region.XYR{{X: math.NaN()}}}, sweep()},
		"nil region":      {nil, sweep(0)},
		"huge x axis":     {region.Rect{XRange: 1e300, XSpacing: 1e-300, YRange: 10, YSpacing: 5}, sweep(0)},
		"dense grid":      {region.Rect{XRange: 500, XSpacing: 1e-6, YRange: 500, YSpacing: 1e-6}, sweep(0)},
		"dense total":     {region.Rect{XRange: 999, XSpacing: 1, YRange: 999, YSpacing: 1}, sweep(0, 90)},
		"dense cylinder":  {region.Cylinder{Radius: 1e9, Spacing: 1}, sweep(0)},
		"dense depths":    {rect, region.Sweep{ZRange: 1e12, ZSpacing: 1, Angles: []float64{0}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Generate(tc.r, tc.s)
			require.Error(t, err)
			assert.True(t, region.IsConfig(err), "got %v", err)
		})
	}
}

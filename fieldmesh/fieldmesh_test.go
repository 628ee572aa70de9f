package fieldmesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/fieldmap/coord"
	"github.com/mastercactapus/fieldmap/machine"
)

func TestMesh_LinearField(t *testing.T) {
	// value rises 0.3 per mm of X
	samples := []Sample{
		{X: -50, Y: -50, Value: -15},
		{X: -50, Y: 50, Value: -15},
		{X: 50, Y: -50, Value: 15},
		{X: 50, Y: 50, Value: 15},
		{X: 0, Y: 0, Value: 0},
	}
	m, err := New(samples)
	require.NoError(t, err)

	for _, tc := range []struct{ x, y, want float64 }{
		{0, 0, 0},
		{10, 0, 3},
		{-25, 40, -7.5},
		{50, 50, 15},
		{50, 0, 15},
	} {
		v, ok := m.Value(tc.x, tc.y)
		if assert.True(t, ok, "(%v, %v)", tc.x, tc.y) {
			assert.InDelta(t, tc.want, v, 1e-9, "(%v, %v)", tc.x, tc.y)
		}
	}

	_, ok := m.Value(60, 0)
	assert.False(t, ok)
}

func TestMesh_AveragesDuplicates(t *testing.T) {
	m, err := New([]Sample{
		{X: 0, Y: 0, Value: 1},
		{X: 0, Y: 0, Value: 3},
		{X: 10, Y: 0, Value: 2},
		{X: 0, Y: 10, Value: 2},
	})
	require.NoError(t, err)

	v, ok := m.Value(0, 0)
	require.True(t, ok)
	assert.InDelta(t, 2, v, 1e-9)
}

func TestNew_Errors(t *testing.T) {
	_, err := New([]Sample{{X: 0}, {X: 1}})
	assert.Error(t, err)

	_, err = New([]Sample{{X: 0}, {X: 1}, {X: 2}})
	assert.Error(t, err)
}

func TestPlane(t *testing.T) {
	recs := []machine.Record{
		{Waypoint: coord.Waypoint{X: 1, Z: -10}, Status: machine.Acquired, Value: 1},
		{Waypoint: coord.Waypoint{X: 2, Z: 10}, Status: machine.Acquired, Value: 2},
		{Waypoint: coord.Waypoint{X: 3, Z: -10}, Status: machine.Skipped},
		{Waypoint: coord.Waypoint{X: 4, Z: -10, R: 90}, Status: machine.Acquired, Value: 4},
	}

	assert.Equal(t, []Sample{{X: 1, Value: 1}}, Plane(recs, -10, 0))
	assert.Equal(t, [][2]float64{{-10, 0}, {10, 0}, {-10, 90}}, Planes(recs))
}

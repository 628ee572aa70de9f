package scanpath

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/fieldmap/coord"
	"github.com/mastercactapus/fieldmap/region"
)

func TestSliceReader(t *testing.T) {
	r := &SliceReader{Points: []coord.Waypoint{{X: 1}, {Y: 2}}}

	w, err := r.Read()
	assert.NoError(t, err)
	assert.Equal(t, coord.Waypoint{X: 1}, w)

	w, err = r.Read()
	assert.NoError(t, err)
	assert.Equal(t, coord.Waypoint{Y: 2}, w)

	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestWrite_RoundTrip(t *testing.T) {
	plan, err := Generate(region.Cylinder{Radius: 10, Spacing: 3.3}, region.Sweep{ZRange: 0.3, ZSpacing: 0.1, Angles: []float64{0, 12.5}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, plan.Points))
	assert.True(t, strings.HasPrefix(buf.String(), "X,Y,Z,Rotation\n"))

	got, err := ReadAll(NewCSVReader(&buf))
	require.NoError(t, err)
	if diff := cmp.Diff(plan.Points, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFile_RoundTrip(t *testing.T) {
	name := filepath.Join(t.TempDir(), "path.csv")
	points := []coord.Waypoint{{X: -0.1, Y: 0.2, Z: 1e-7, R: 359.5}, {X: 3}}

	require.NoError(t, WriteFile(name, points))
	got, err := ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, points, got)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.csv"))
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "open", ioErr.Op)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCSVReader_BadRow(t *testing.T) {
	r := NewCSVReader(strings.NewReader("X,Y,Z,Rotation\n1,2,3,4\n1,2,oops,4\n"))

	w, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, coord.Waypoint{X: 1, Y: 2, Z: 3, R: 4}, w)

	_, err = r.Read()
	assert.ErrorContains(t, err, "line 3")
}

func TestCSVReader_NoHeader(t *testing.T) {
	got, err := ReadAll(NewCSVReader(strings.NewReader("1,2,3,4\n")))
	require.NoError(t, err)
	assert.Equal(t, []coord.Waypoint{{X: 1, Y: 2, Z: 3, R: 4}}, got)
}

func TestReadXYR(t *testing.T) {
	pts, err := ReadXYR(strings.NewReader("x,y,r\n0, 0, 0\n10,5,90\n"))
	require.NoError(t, err)
	assert.Equal(t, []region.XYR{{X: 0, Y: 0, R: 0}, {X: 10, Y: 5, R: 90}}, pts)

	_, err = ReadXYR(strings.NewReader("x,y,r\n1,2\n"))
	assert.Error(t, err)
}

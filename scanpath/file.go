package scanpath

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mastercactapus/fieldmap/coord"
	"github.com/mastercactapus/fieldmap/region"
)

// Header is the first row of every path file.
var Header = []string{"X", "Y", "Z", "Rotation"}

// A Reader yields waypoints in order, returning io.EOF after the last one.
type Reader interface {
	Read() (coord.Waypoint, error)
}

// SliceReader reads from an in-memory list.
type SliceReader struct {
	Points []coord.Waypoint
	n      int
}

func (s *SliceReader) Read() (coord.Waypoint, error) {
	if s.n == len(s.Points) {
		return coord.Waypoint{}, io.EOF
	}

	s.n++
	return s.Points[s.n-1], nil
}

// CSVReader reads a path file. A leading header row is skipped.
type CSVReader struct {
	r    *csv.Reader
	line int
}

func NewCSVReader(r io.Reader) *CSVReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &CSVReader{r: cr}
}

func (p *CSVReader) Read() (coord.Waypoint, error) {
	for {
		rec, err := p.r.Read()
		if err != nil {
			return coord.Waypoint{}, err
		}
		p.line++
		if p.line == 1 && isHeader(rec) {
			continue
		}
		w, err := ParseRow(rec)
		if err != nil {
			return coord.Waypoint{}, fmt.Errorf("line %d: %w", p.line, err)
		}
		return w, nil
	}
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
	return err != nil
}

// ParseRow parses the first four fields of rec as X, Y, Z and rotation.
func ParseRow(rec []string) (w coord.Waypoint, err error) {
	if len(rec) < 4 {
		return w, fmt.Errorf("expected 4 fields, got %d", len(rec))
	}
	var v [4]float64
	for i := range v {
		v[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return w, err
		}
	}
	return coord.Waypoint{X: v[0], Y: v[1], Z: v[2], R: v[3]}, nil
}

// FormatFloat renders f with the fewest digits that read back exactly.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Row renders w as path file fields.
func Row(w coord.Waypoint) []string {
	return []string{FormatFloat(w.X), FormatFloat(w.Y), FormatFloat(w.Z), FormatFloat(w.R)}
}

// ReadAll drains r.
func ReadAll(r Reader) ([]coord.Waypoint, error) {
	var res []coord.Waypoint
	for {
		w, err := r.Read()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
}

// Write writes a header row followed by one row per point.
func Write(w io.Writer, points []coord.Waypoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, p := range points {
		if err := cw.Write(Row(p)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile replaces the file at path with the given points.
func WriteFile(path string, points []coord.Waypoint) error {
	f, err := os.Create(path)
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	err = Write(f, points)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// ReadFile reads a whole path file.
func ReadFile(path string) ([]coord.Waypoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	points, err := ReadAll(NewCSVReader(f))
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return points, nil
}

// ReadXYR reads a custom path: rows of x, y, rotation after a header row.
func ReadXYR(r io.Reader) ([]region.XYR, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var res []region.XYR
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && isHeader(rec) {
			continue
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("line %d: expected 3 fields, got %d", line, len(rec))
		}
		var v [3]float64
		for i := range v {
			v[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		res = append(res, region.XYR{X: v[0], Y: v[1], R: v[2]})
	}
}

// ReadXYRFile reads a custom path file.
func ReadXYRFile(path string) ([]region.XYR, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	pts, err := ReadXYR(f)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return pts, nil
}

// Package datalog reads and writes the per-run data log: one CSV row per
// acquired or skipped waypoint.
package datalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mastercactapus/fieldmap/machine"
	"github.com/mastercactapus/fieldmap/scanpath"
)

// Header is the first row of every data log.
var Header = []string{"X", "Y", "Z", "Rotation", "Value", "Unit"}

// skippedValue marks a skipped row in the Value column.
const skippedValue = "skipped"

// Writer appends records to a data log. Moved records carry no data and are
// not written. Every row is flushed as soon as it is written.
type Writer struct {
	cw   *csv.Writer
	c    io.Closer
	path string
}

var _ machine.RecordWriter = &Writer{}

// NewWriter writes the header row to w and returns a Writer.
func NewWriter(w io.Writer) (*Writer, error) {
	dw := &Writer{cw: csv.NewWriter(w)}
	if err := dw.write(Header); err != nil {
		return nil, &scanpath.IOError{Op: "write", Err: err}
	}
	return dw, nil
}

// Create creates (or truncates) the data log at path.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &scanpath.IOError{Op: "create", Path: path, Err: err}
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, &scanpath.IOError{Op: "write", Path: path, Err: errors.Unwrap(err)}
	}
	w.c = f
	w.path = path
	return w, nil
}

func (w *Writer) write(row []string) error {
	if err := w.cw.Write(row); err != nil {
		return err
	}
	w.cw.Flush()
	return w.cw.Error()
}

func (w *Writer) WriteRecord(r machine.Record) error {
	row := scanpath.Row(r.Waypoint)
	switch r.Status {
	case machine.Moved:
		return nil
	case machine.Acquired:
		row = append(row, scanpath.FormatFloat(r.Value), r.Unit)
	case machine.Skipped:
		row = append(row, skippedValue, r.Reason)
	default:
		return fmt.Errorf("unknown record status %d", r.Status)
	}
	if err := w.write(row); err != nil {
		return &scanpath.IOError{Op: "write", Path: w.path, Err: err}
	}
	return nil
}

// Close closes the file opened by Create.
func (w *Writer) Close() error {
	if w.c == nil {
		return nil
	}
	return w.c.Close()
}

// Read parses a data log. The header row is optional.
func Read(r io.Reader) ([]machine.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var res []machine.Record
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "x") {
			continue
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		res = append(res, rec)
	}
}

func parseRow(row []string) (machine.Record, error) {
	if len(row) < 5 {
		return machine.Record{}, fmt.Errorf("expected at least 5 fields, got %d", len(row))
	}
	w, err := scanpath.ParseRow(row)
	if err != nil {
		return machine.Record{}, err
	}
	rec := machine.Record{Waypoint: w}

	val := strings.TrimSpace(row[4])
	var extra string
	if len(row) > 5 {
		extra = strings.TrimSpace(row[5])
	}
	if val == skippedValue {
		rec.Status = machine.Skipped
		rec.Reason = extra
		return rec, nil
	}
	rec.Value, err = strconv.ParseFloat(val, 64)
	if err != nil {
		// older logs write the skip reason in the value column
		rec.Status = machine.Skipped
		rec.Reason = val
		return rec, nil
	}
	rec.Status = machine.Acquired
	rec.Unit = extra
	return rec, nil
}

// ReadFile reads the data log at path.
func ReadFile(path string) ([]machine.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &scanpath.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	recs, err := Read(f)
	if err != nil {
		return nil, &scanpath.IOError{Op: "read", Path: path, Err: err}
	}
	return recs, nil
}

package machine

import (
	"errors"

	"github.com/mastercactapus/fieldmap/coord"
)

// Status is the outcome of visiting a waypoint.
type Status int

const (
	// Moved means the stage reached the waypoint and no reading was taken.
	Moved Status = iota
	Acquired
	Skipped
)

func (s Status) String() string {
	switch s {
	case Moved:
		return "moved"
	case Acquired:
		return "acquired"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

const (
	ReasonOutOfBounds  = "out of motion bounds"
	ReasonProbeTimeout = "probe timeout"
)

// A Record is emitted for every waypoint of a run.
type Record struct {
	coord.Waypoint
	Status Status

	// Value and Unit are set for Acquired records.
	Value float64
	Unit  string

	// Reason is set for Skipped records.
	Reason string
}

// A RecordWriter receives records in waypoint order. An error from
// WriteRecord aborts the run.
type RecordWriter interface {
	WriteRecord(Record) error
}

// RecordWriterFunc adapts a function to a RecordWriter.
type RecordWriterFunc func(Record) error

func (f RecordWriterFunc) WriteRecord(r Record) error { return f(r) }

type multiWriter []RecordWriter

// MultiWriter returns a RecordWriter that writes to every w in order.
// Every writer is called; their errors are joined.
func MultiWriter(w ...RecordWriter) RecordWriter {
	return multiWriter(w)
}

func (m multiWriter) WriteRecord(r Record) error {
	var errs []error
	for _, w := range m {
		if err := w.WriteRecord(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

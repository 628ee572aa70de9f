// Package store keeps runs and their records in SQLite.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mastercactapus/fieldmap/clock"
	"github.com/mastercactapus/fieldmap/machine"
)

//go:embed schema.sql
var schemaSQL string

// Run kinds.
const (
	KindFull  = "full"
	KindEdges = "edges"
)

// StateRunning is the state of a run that has not finished.
const StateRunning = "running"

type Store struct {
	*sql.DB
	Clock clock.Clock
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps writes ordered
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	log.Println("Opened run database", path)
	return &Store{DB: db, Clock: clock.Real{}}, nil
}

// RunInfo is one row of the runs table.
type RunInfo struct {
	ID       string
	Kind     string
	Profile  string
	Started  time.Time
	Finished time.Time // zero while running
	State    string
	Error    string
	Points   int
}

// Run records one sequencer run. It implements machine.RecordWriter.
type Run struct {
	s   *Store
	ID  string
	seq int
}

var _ machine.RecordWriter = &Run{}

// Begin inserts a new run.
func (s *Store) Begin(kind, profile string) (*Run, error) {
	id := uuid.NewString()
	_, err := s.Exec(
		`INSERT INTO runs (id, kind, profile, started_ns, state) VALUES (?, ?, ?, ?, ?)`,
		id, kind, profile, s.Clock.Now().UnixNano(), StateRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to begin run: %w", err)
	}
	return &Run{s: s, ID: id}, nil
}

func (r *Run) WriteRecord(rec machine.Record) error {
	var value sql.NullFloat64
	if rec.Status == machine.Acquired {
		value = sql.NullFloat64{Float64: rec.Value, Valid: true}
	}
	_, err := r.s.Exec(
		`INSERT INTO records (run_id, seq, x, y, z, rotation, status, value, unit, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.seq, rec.X, rec.Y, rec.Z, rec.R, rec.Status.String(), value, rec.Unit, rec.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	r.seq++
	return nil
}

// Finish stores the final state of the run.
func (r *Run) Finish(state machine.State, runErr error) error {
	var msg string
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := r.s.Exec(
		`UPDATE runs SET finished_ns = ?, state = ?, error = ?, point_count = ? WHERE id = ?`,
		r.s.Clock.Now().UnixNano(), state.String(), msg, r.seq, r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// Runs lists every run, oldest first.
func (s *Store) Runs() ([]RunInfo, error) {
	rows, err := s.Query(`SELECT id, kind, profile, started_ns, finished_ns, state, error, point_count FROM runs ORDER BY started_ns, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []RunInfo
	for rows.Next() {
		var (
			ri       RunInfo
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&ri.ID, &ri.Kind, &ri.Profile, &started, &finished, &ri.State, &ri.Error, &ri.Points); err != nil {
			return nil, err
		}
		ri.Started = time.Unix(0, started)
		if finished.Valid {
			ri.Finished = time.Unix(0, finished.Int64)
		}
		res = append(res, ri)
	}
	return res, rows.Err()
}

var statuses = map[string]machine.Status{
	machine.Moved.String():    machine.Moved,
	machine.Acquired.String(): machine.Acquired,
	machine.Skipped.String():  machine.Skipped,
}

// Records returns the records of a run in order.
func (s *Store) Records(runID string) ([]machine.Record, error) {
	rows, err := s.Query(`SELECT x, y, z, rotation, status, value, unit, reason FROM records WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []machine.Record
	for rows.Next() {
		var (
			rec    machine.Record
			status string
			value  sql.NullFloat64
		)
		if err := rows.Scan(&rec.X, &rec.Y, &rec.Z, &rec.R, &status, &value, &rec.Unit, &rec.Reason); err != nil {
			return nil, err
		}
		st, ok := statuses[status]
		if !ok {
			return nil, fmt.Errorf("unknown record status %q", status)
		}
		rec.Status = st
		rec.Value = value.Float64
		res = append(res, rec)
	}
	return res, rows.Err()
}

// Package machine sequences stage motion and sensor acquisition over a list
// of waypoints.
package machine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/mastercactapus/fieldmap/clock"
	"github.com/mastercactapus/fieldmap/coord"
	"github.com/mastercactapus/fieldmap/probe"
	"github.com/mastercactapus/fieldmap/region"
	"github.com/mastercactapus/fieldmap/scanpath"
)

// EdgeDwell is the pause at each point of a boundary run.
const EdgeDwell = time.Second

// axisCount is the number of devices a run needs: X, Y, Z and rotation.
const axisCount = 4

// AxisMap binds logical axes to detected devices by index.
type AxisMap struct {
	X, Y, Z, R int
}

// DefaultAxisMap is the mounting order of the reference instrument.
var DefaultAxisMap = AxisMap{Z: 0, X: 1, Y: 2, R: 3}

func (m AxisMap) validate() error {
	seen := map[int]bool{}
	for _, i := range []int{m.X, m.Y, m.Z, m.R} {
		if i < 0 || i >= axisCount || seen[i] {
			return fmt.Errorf("invalid axis map %+v", m)
		}
		seen[i] = true
	}
	return nil
}

// Accel holds per-axis accelerations in mm/s². Zero leaves the device
// default.
type Accel struct {
	X, Y, Z float64
}

// An Acquirer returns one sensor reading.
type Acquirer interface {
	Acquire(ctx context.Context) (probe.Reading, error)
}

// Config configures a Sequencer.
type Config struct {
	Driver Driver
	Sweep  region.Sweep

	// Acquirer is required when Sweep.CollectData is set.
	Acquirer Acquirer

	Clock clock.Clock

	// AxisMap defaults to DefaultAxisMap when zero.
	AxisMap AxisMap
	Accel   Accel

	// OnState, if set, is called after every state change.
	OnState func(State)
}

// Sequencer drives the stages through a run. It owns the driver connection
// until Close.
type Sequencer struct {
	cfg Config

	mx    sync.Mutex
	state State

	devices []Device
	x, y, z Device
	r       Device
}

// New returns an Idle sequencer. No connection is made until Home.
func New(cfg Config) *Sequencer {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.AxisMap == (AxisMap{}) {
		cfg.AxisMap = DefaultAxisMap
	}
	return &Sequencer{cfg: cfg}
}

// State returns the current state.
func (s *Sequencer) State() State {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.state
}

func (s *Sequencer) transition(to State) error {
	s.mx.Lock()
	from := s.state
	if !isAllowedTransition(from, to) {
		s.mx.Unlock()
		return fmt.Errorf("disallowed transition: %s -> %s", from, to)
	}
	s.state = to
	s.mx.Unlock()

	if s.cfg.OnState != nil {
		s.cfg.OnState(to)
	}
	return nil
}

// abort moves to Aborted and returns err.
func (s *Sequencer) abort(err error) error {
	if s.State() != Aborted {
		if terr := s.transition(Aborted); terr != nil {
			log.Printf("ERROR: %+v", terr)
		}
	}
	log.Printf("ERROR: run aborted: %+v", err)
	return err
}

func (s *Sequencer) open(ctx context.Context) error {
	if s.devices != nil {
		return nil
	}
	if err := s.cfg.AxisMap.validate(); err != nil {
		return &DeviceError{Op: "detect", Err: err}
	}
	devs, err := s.cfg.Driver.DetectDevices(ctx)
	if err != nil {
		return &DeviceError{Op: "detect", Err: err}
	}
	if len(devs) != axisCount {
		return &DeviceError{Op: "detect", Err: fmt.Errorf("%w: found %d, want %d", ErrDeviceCount, len(devs), axisCount)}
	}
	m := s.cfg.AxisMap
	s.devices = devs
	s.x, s.y, s.z, s.r = devs[m.X], devs[m.Y], devs[m.Z], devs[m.R]
	log.Printf("Found %d stage devices", len(devs))
	return nil
}

// Home detects the devices, homes every axis and waits for all of them to
// stop. The configured accelerations are applied afterwards.
//
// Cancelling ctx prevents homing from starting. Once the devices are
// detected homing runs to completion, as a stage stopped mid-travel has no
// known position.
func (s *Sequencer) Home(ctx context.Context) error {
	switch st := s.State(); st {
	case Idle, Homed, Complete:
	default:
		return fmt.Errorf("cannot home while %s", st)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.open(ctx); err != nil {
		return s.abort(err)
	}
	ctx = context.WithoutCancel(ctx)
	for _, d := range s.devices {
		if err := d.Home(ctx); err != nil {
			return s.abort(&DeviceError{Op: "home", Device: d.Address(), Err: err})
		}
	}
	for _, d := range s.devices {
		if err := d.Axis(1).WaitUntilIdle(ctx); err != nil {
			return s.abort(&DeviceError{Op: "home", Device: d.Address(), Err: err})
		}
	}
	for _, a := range []struct {
		d Device
		v float64
	}{{s.x, s.cfg.Accel.X}, {s.y, s.cfg.Accel.Y}, {s.z, s.cfg.Accel.Z}} {
		if a.v <= 0 {
			continue
		}
		if err := a.d.SetAcceleration(ctx, a.v); err != nil {
			return s.abort(&DeviceError{Op: "set accel", Device: a.d.Address(), Err: err})
		}
	}
	if err := s.checkWarnings(ctx, s.devices...); err != nil {
		return s.abort(err)
	}

	return s.transition(Homed)
}

// checkWarnings logs any warning flags. Only a failure to read them is an
// error.
func (s *Sequencer) checkWarnings(ctx context.Context, devs ...Device) error {
	for _, d := range devs {
		flags, err := d.WarningFlags(ctx)
		if err != nil {
			return &DeviceError{Op: "warnings", Device: d.Address(), Err: err}
		}
		if len(flags) > 0 {
			log.Printf("WARN: device %d reports %v", d.Address(), flags)
		}
	}
	return nil
}

// VerifyBounds reports whether the stage position of w is within travel.
func (s *Sequencer) VerifyBounds(w coord.Waypoint) bool {
	return VerifyBounds(s.cfg.Sweep, w)
}

// VerifyBounds reports whether the stage position of the mapper-frame
// waypoint w lies within the sweep's stage limits.
func VerifyBounds(sw region.Sweep, w coord.Waypoint) bool {
	return sw.InBounds(w)
}

// MoveTo moves to the mapper-frame waypoint w. X, Y and rotation move
// together first; Z moves only once all three have stopped.
func (s *Sequencer) MoveTo(ctx context.Context, w coord.Waypoint) error {
	if !s.State().Ready() {
		return ErrNotHomed
	}
	if !s.VerifyBounds(w) {
		return fmt.Errorf("move to %+v: %s", w, ReasonOutOfBounds)
	}
	if err := s.moveTo(ctx, w); err != nil {
		return s.abort(err)
	}
	return nil
}

func (s *Sequencer) moveTo(ctx context.Context, w coord.Waypoint) error {
	st := s.cfg.Sweep.ToStage(w)

	type move struct {
		d    Device
		pos  float64
		unit Unit
	}
	plane := []move{{s.x, st.X, Millimetres}, {s.y, st.Y, Millimetres}, {s.r, st.R, Degrees}}
	for _, m := range plane {
		if err := m.d.Axis(1).MoveAbsolute(ctx, m.pos, m.unit, false); err != nil {
			return &DeviceError{Op: "move", Device: m.d.Address(), Err: err}
		}
	}
	for _, m := range plane {
		if err := m.d.Axis(1).WaitUntilIdle(ctx); err != nil {
			return &DeviceError{Op: "move", Device: m.d.Address(), Err: err}
		}
	}
	if err := s.checkWarnings(ctx, s.x, s.y, s.r); err != nil {
		return err
	}

	if err := s.z.Axis(1).MoveAbsolute(ctx, st.Z, Millimetres, true); err != nil {
		return &DeviceError{Op: "move", Device: s.z.Address(), Err: err}
	}
	return s.checkWarnings(ctx, s.z)
}

// Run visits every waypoint of r, writing one record per waypoint to w.
//
// Out of bounds waypoints are recorded as skipped without moving. After each
// move the sequencer dwells, then takes a reading if the sweep collects data;
// a probe timeout is recorded as skipped. Device and writer errors abort the
// run.
//
// Cancelling ctx stops the run before the next waypoint; a move or reading in
// progress is never interrupted. The run then ends Aborted with ctx's error.
func (s *Sequencer) Run(ctx context.Context, r scanpath.Reader, w RecordWriter) error {
	return s.run(ctx, r, w, s.cfg.Sweep.Dwell, s.cfg.Sweep.CollectData)
}

// RunEdges visits the boundary path with a fixed dwell and no readings.
func (s *Sequencer) RunEdges(ctx context.Context, r scanpath.Reader, w RecordWriter) error {
	return s.run(ctx, r, w, EdgeDwell, false)
}

func (s *Sequencer) run(ctx context.Context, r scanpath.Reader, w RecordWriter, dwell time.Duration, collect bool) error {
	if !s.State().Ready() {
		return ErrNotHomed
	}
	if collect && s.cfg.Acquirer == nil {
		return errors.New("data collection requires a probe")
	}
	// motion and readings in progress finish even if ctx is cancelled
	inner := context.WithoutCancel(ctx)

	var n int
	for {
		if err := ctx.Err(); err != nil {
			return s.abort(fmt.Errorf("stopped after %d points: %w", n, err))
		}
		wp, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.abort(fmt.Errorf("read path: %w", err))
		}
		n++

		rec, err := s.visit(inner, wp, dwell, collect)
		if err != nil {
			return s.abort(err)
		}
		if err := w.WriteRecord(rec); err != nil {
			return s.abort(fmt.Errorf("write record: %w", err))
		}
	}

	log.Printf("Run complete: %d points", n)
	return s.transition(Complete)
}

func (s *Sequencer) visit(ctx context.Context, wp coord.Waypoint, dwell time.Duration, collect bool) (Record, error) {
	if !s.VerifyBounds(wp) {
		log.Printf("WARN: %+v is out of bounds; skipping", wp)
		return Record{Waypoint: wp, Status: Skipped, Reason: ReasonOutOfBounds}, nil
	}

	if err := s.transition(Positioning); err != nil {
		return Record{}, err
	}
	if err := s.moveTo(ctx, wp); err != nil {
		return Record{}, err
	}
	if err := s.transition(Settling); err != nil {
		return Record{}, err
	}
	s.cfg.Clock.Sleep(dwell)

	if !collect {
		return Record{Waypoint: wp, Status: Moved}, nil
	}
	if err := s.transition(Acquiring); err != nil {
		return Record{}, err
	}
	reading, err := s.cfg.Acquirer.Acquire(ctx)
	if errors.Is(err, probe.ErrTimeout) {
		log.Printf("WARN: %+v: %v", wp, err)
		return Record{Waypoint: wp, Status: Skipped, Reason: ReasonProbeTimeout}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("acquire: %w", err)
	}
	return Record{Waypoint: wp, Status: Acquired, Value: reading.Value, Unit: reading.Unit}, nil
}

// Close releases the driver connection.
func (s *Sequencer) Close() error {
	if s.cfg.Driver == nil {
		return nil
	}
	return s.cfg.Driver.Close()
}

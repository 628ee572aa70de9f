package machine

import "context"

// Unit is the unit of an absolute axis position.
type Unit int

const (
	Millimetres Unit = iota
	Degrees
)

func (u Unit) String() string {
	switch u {
	case Millimetres:
		return "mm"
	case Degrees:
		return "deg"
	}
	return "unknown"
}

// An Axis is a single motor of a device.
type Axis interface {
	// MoveAbsolute starts a move to pos. If wait is set it blocks until the
	// axis is idle again.
	MoveAbsolute(ctx context.Context, pos float64, unit Unit, wait bool) error

	WaitUntilIdle(ctx context.Context) error
}

// A Device is one stage controller on the chain.
type Device interface {
	Address() int

	// Home starts homing every axis of the device without waiting.
	Home(ctx context.Context) error

	// Axis returns axis n (1-based).
	Axis(n int) Axis

	// WarningFlags returns the active warning flags, e.g. "FS" for a stall.
	WarningFlags(ctx context.Context) ([]string, error)

	// SetAcceleration sets the acceleration of every axis in mm/s².
	SetAcceleration(ctx context.Context, mmps2 float64) error
}

// A Driver owns the connection to the stage controllers.
type Driver interface {
	DetectDevices(ctx context.Context) ([]Device, error)
	Close() error
}

package zaber

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mastercactapus/fieldmap/machine"
)

// Device is one controller on the chain.
type Device struct {
	c    *Conn
	addr int
}

var _ machine.Device = &Device{}

// Device returns a handle for the device at addr without probing it.
func (c *Conn) Device(addr int) *Device { return &Device{c: c, addr: addr} }

func (d *Device) Address() int { return d.addr }

func (d *Device) Home(ctx context.Context) error {
	_, err := d.c.Command(ctx, d.addr, 0, "home")
	return err
}

func (d *Device) Axis(n int) machine.Axis { return &Axis{d: d, n: n} }

func (d *Device) WarningFlags(ctx context.Context) ([]string, error) {
	r, err := d.c.Command(ctx, d.addr, 0, "warnings")
	if err != nil {
		return nil, err
	}
	return parseWarnings(r.Data)
}

// SetAcceleration converts mm/s² to the device's native acceleration unit.
func (d *Device) SetAcceleration(ctx context.Context, mmps2 float64) error {
	native := math.Round(mmps2 / d.c.Linear * 1.6384 / 10000)
	if native < 1 {
		return fmt.Errorf("acceleration %v mm/s² is below the device resolution", mmps2)
	}
	_, err := d.c.Command(ctx, d.addr, 0, fmt.Sprintf("set accel %d", int64(native)))
	return err
}

// Axis is one motor of a device.
type Axis struct {
	d *Device
	n int
}

var _ machine.Axis = &Axis{}

func (a *Axis) native(pos float64, unit machine.Unit) (int64, error) {
	switch unit {
	case machine.Millimetres:
		return int64(math.Round(pos / a.d.c.Linear)), nil
	case machine.Degrees:
		return int64(math.Round(pos / a.d.c.Rotary)), nil
	}
	return 0, fmt.Errorf("unsupported unit %s", unit)
}

func (a *Axis) MoveAbsolute(ctx context.Context, pos float64, unit machine.Unit, wait bool) error {
	n, err := a.native(pos, unit)
	if err != nil {
		return err
	}
	if _, err := a.d.c.Command(ctx, a.d.addr, a.n, fmt.Sprintf("move abs %d", n)); err != nil {
		return err
	}
	if !wait {
		return nil
	}
	return a.WaitUntilIdle(ctx)
}

// WaitUntilIdle polls the axis until it reports IDLE.
func (a *Axis) WaitUntilIdle(ctx context.Context) error {
	for {
		r, err := a.d.c.Command(ctx, a.d.addr, a.n, "")
		if err != nil {
			return err
		}
		if !r.Busy {
			return nil
		}

		t := time.NewTimer(a.d.c.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

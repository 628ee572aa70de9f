package machine

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceCount is returned when the number of detected devices does not
	// match the number of axes.
	ErrDeviceCount = errors.New("unexpected device count")

	// ErrNotHomed is returned by Run and MoveTo before a successful Home.
	ErrNotHomed = errors.New("stage not homed")
)

// DeviceError is a fatal stage failure. Device is the device address, or 0
// when the failure is not tied to one device.
type DeviceError struct {
	Op     string
	Device int
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Device == 0 {
		return fmt.Sprintf("stage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("stage device %d: %s: %v", e.Device, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

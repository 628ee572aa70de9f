package region

import (
	"time"

	"github.com/mastercactapus/fieldmap/coord"
)

// Range is an inclusive [Min, Max] interval.
type Range struct {
	Min, Max float64
}

// Contains reports whether Min ≤ v ≤ Max.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Limits holds the physical travel of each stage, in stage frame.
type Limits struct {
	X, Y, Z Range
	R       Range
}

// DefaultLimits returns the travel of the reference instrument.
func DefaultLimits() Limits {
	return Limits{
		X: Range{Min: 0, Max: 500},
		Y: Range{Min: 0, Max: 500},
		Z: Range{Min: 0, Max: 1000},
		R: Range{Min: 0, Max: 360},
	}
}

// Sweep holds the parameters shared by every region shape.
//
// A Sweep is built once from configuration and passed by value; nothing
// updates it afterwards.
type Sweep struct {
	ZRange, ZSpacing float64

	// Angles is the ordered set of rotations swept for rectangular and
	// cylindrical regions. Custom paths carry their own rotation.
	Angles []float64

	// Offset is the stage position (stage frame) at which the probe tip
	// sits on the mapper origin.
	Offset coord.Point

	Dwell       time.Duration
	CollectData bool
	Limits      Limits
}

// Validate checks the sweep. needAngles is false for custom paths.
func (s Sweep) Validate(needAngles bool) error {
	if err := positive("z_range", s.ZRange); err != nil {
		return err
	}
	if err := positive("z_spacing", s.ZSpacing); err != nil {
		return err
	}
	if s.Dwell < 0 {
		return invalidf("probe_stop_time_sec", "must not be negative, got %s", s.Dwell)
	}
	if needAngles {
		if len(s.Angles) == 0 {
			return invalidf("rotation_points", "at least one rotation angle is required")
		}
		seen := make(map[float64]bool, len(s.Angles))
		for _, a := range s.Angles {
			if !finite(a) {
				return invalidf("rotation_points", "angle %v is not a finite number", a)
			}
			if seen[a] {
				return invalidf("rotation_points", "angle %v is repeated", a)
			}
			seen[a] = true
		}
	}
	for _, l := range []struct {
		name string
		r    Range
	}{{"stage_limits.x", s.Limits.X}, {"stage_limits.y", s.Limits.Y}, {"stage_limits.z", s.Limits.Z}, {"stage_limits.r", s.Limits.R}} {
		if l.r.Min > l.r.Max {
			return invalidf(l.name, "min %v is greater than max %v", l.r.Min, l.r.Max)
		}
	}
	return nil
}

// ToStage converts a mapper-frame waypoint to stage frame.
//
// The Y stage is mounted with its motor at the top, so a larger commanded
// position is physically lower: stage Y is the offset minus mapper Y. This
// inversion is a property of the mounting, not a sign error.
func (s Sweep) ToStage(w coord.Waypoint) coord.Waypoint {
	return coord.Waypoint{
		X: w.X + s.Offset.X,
		Y: s.Offset.Y - w.Y,
		Z: w.Z + s.Offset.Z,
		R: w.R,
	}
}

// InBounds reports whether the stage-frame position of w lies within the
// travel limits. Rotation is additionally bounded to [0, 360).
func (s Sweep) InBounds(w coord.Waypoint) bool {
	st := s.ToStage(w)
	if !s.Limits.X.Contains(st.X) || !s.Limits.Y.Contains(st.Y) || !s.Limits.Z.Contains(st.Z) {
		return false
	}
	if st.R < 0 || st.R >= 360 {
		return false
	}
	return s.Limits.R.Contains(st.R)
}

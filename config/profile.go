// Package config loads scan profiles: named sets of region, sweep and device
// settings kept together in one JSON or YAML file.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mastercactapus/fieldmap/coord"
	"github.com/mastercactapus/fieldmap/region"
	"github.com/mastercactapus/fieldmap/scanpath"
)

// Flag is a boolean that also accepts the strings written by older
// configuration files ("True", "F", ...).
type Flag bool

func parseFlag(s string) (Flag, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, fmt.Errorf("empty boolean")
	}
	switch s[0] {
	case 'T', 't', 'Y', 'y', '1':
		return true, nil
	case 'F', 'f', 'N', 'n', '0':
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("collect_data: %w", err)
	}
	v, err := parseFlag(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (f *Flag) UnmarshalYAML(n *yaml.Node) error {
	v, err := parseFlag(n.Value)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Range is an inclusive travel interval.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Limits is the travel of each stage.
type Limits struct {
	X Range `json:"x" yaml:"x"`
	Y Range `json:"y" yaml:"y"`
	Z Range `json:"z" yaml:"z"`
	R Range `json:"r" yaml:"r"`
}

// Profile is one named configuration.
type Profile struct {
	Shape string `json:"shape" yaml:"shape"`

	XRange   float64 `json:"x_range,omitempty" yaml:"x_range,omitempty"`
	XSpacing float64 `json:"x_spacing,omitempty" yaml:"x_spacing,omitempty"`
	YRange   float64 `json:"y_range,omitempty" yaml:"y_range,omitempty"`
	YSpacing float64 `json:"y_spacing,omitempty" yaml:"y_spacing,omitempty"`

	Radius    float64 `json:"radius,omitempty" yaml:"radius,omitempty"`
	XYSpacing float64 `json:"xy_spacing,omitempty" yaml:"xy_spacing,omitempty"`

	CustomPathFile string `json:"custom_xyr_path_filename,omitempty" yaml:"custom_xyr_path_filename,omitempty"`

	ZRange         float64   `json:"z_range" yaml:"z_range"`
	ZSpacing       float64   `json:"z_spacing" yaml:"z_spacing"`
	RotationPoints []float64 `json:"rotation_points" yaml:"rotation_points"`

	XOffset float64 `json:"x_offset" yaml:"x_offset"`
	YOffset float64 `json:"y_offset" yaml:"y_offset"`
	ZOffset float64 `json:"z_offset" yaml:"z_offset"`

	XAccel float64 `json:"x_accel,omitempty" yaml:"x_accel,omitempty"`
	YAccel float64 `json:"y_accel,omitempty" yaml:"y_accel,omitempty"`
	ZAccel float64 `json:"z_accel,omitempty" yaml:"z_accel,omitempty"`

	ProbeStopTimeSec float64 `json:"probe_stop_time_sec" yaml:"probe_stop_time_sec"`
	CollectData      Flag    `json:"collect_data" yaml:"collect_data"`

	CommPortStage string `json:"comm_port_stage,omitempty" yaml:"comm_port_stage,omitempty"`
	// CommPortZaber is the older name of CommPortStage.
	CommPortZaber string `json:"comm_port_zaber,omitempty" yaml:"comm_port_zaber,omitempty"`

	CommPortProbe     string  `json:"comm_port_probe,omitempty" yaml:"comm_port_probe,omitempty"`
	ProbeBaud         int     `json:"probe_baud" yaml:"probe_baud"`
	ProbeTimeoutSec   float64 `json:"probe_timeout_sec" yaml:"probe_timeout_sec"`
	ProbeDiscardLines int     `json:"probe_discard_lines" yaml:"probe_discard_lines"`

	StageLimits Limits `json:"stage_limits" yaml:"stage_limits"`

	PathFilename      string `json:"path_filename" yaml:"path_filename"`
	PathEdgesFilename string `json:"path_edges_filename" yaml:"path_edges_filename"`
	DataFilename      string `json:"data_filename" yaml:"data_filename"`
}

// Default returns a profile holding every default value. Keys missing from a
// file keep these values.
func Default() Profile {
	lim := region.DefaultLimits()
	return Profile{
		Shape:             string(region.ShapeRectangular),
		ProbeBaud:         9600,
		ProbeTimeoutSec:   10,
		ProbeDiscardLines: 2,
		StageLimits: Limits{
			X: Range{lim.X.Min, lim.X.Max},
			Y: Range{lim.Y.Min, lim.Y.Max},
			Z: Range{lim.Z.Min, lim.Z.Max},
			R: Range{lim.R.Min, lim.R.Max},
		},
		PathFilename:      "path.csv",
		PathEdgesFilename: "path_edges.csv",
		DataFilename:      "data.csv",
	}
}

// NormalizedShape maps the accepted shape spellings to a region.Shape.
func (p *Profile) NormalizedShape() (region.Shape, error) {
	switch strings.ToLower(strings.TrimSpace(p.Shape)) {
	case "rectangular", "rectangle", "rect":
		return region.ShapeRectangular, nil
	case "cylindrical", "cylinder":
		return region.ShapeCylindrical, nil
	case "custom":
		return region.ShapeCustom, nil
	}
	return "", &region.ConfigError{Field: "shape", Msg: fmt.Sprintf("unknown shape %q", p.Shape)}
}

// Region builds the scan region. A relative custom path file is resolved
// against baseDir.
func (p *Profile) Region(baseDir string) (region.Region, error) {
	shape, err := p.NormalizedShape()
	if err != nil {
		return nil, err
	}

	var r region.Region
	switch shape {
	case region.ShapeRectangular:
		r = region.Rect{XRange: p.XRange, XSpacing: p.XSpacing, YRange: p.YRange, YSpacing: p.YSpacing}
	case region.ShapeCylindrical:
		r = region.Cylinder{Radius: p.Radius, Spacing: p.XYSpacing}
	case region.ShapeCustom:
		if p.CustomPathFile == "" {
			return nil, &region.ConfigError{Field: "custom_xyr_path_filename", Msg: "required for custom shape"}
		}
		name := p.CustomPathFile
		if !filepath.IsAbs(name) {
			name = filepath.Join(baseDir, name)
		}
		pts, err := scanpath.ReadXYRFile(name)
		if err != nil {
			return nil, err
		}
		r = region.Path{Points: pts}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Sweep builds the sweep parameters.
func (p *Profile) Sweep() region.Sweep {
	l := p.StageLimits
	return region.Sweep{
		ZRange:      p.ZRange,
		ZSpacing:    p.ZSpacing,
		Angles:      append([]float64(nil), p.RotationPoints...),
		Offset:      coord.Point{X: p.XOffset, Y: p.YOffset, Z: p.ZOffset},
		Dwell:       seconds(p.ProbeStopTimeSec),
		CollectData: bool(p.CollectData),
		Limits: region.Limits{
			X: region.Range{Min: l.X.Min, Max: l.X.Max},
			Y: region.Range{Min: l.Y.Min, Max: l.Y.Max},
			Z: region.Range{Min: l.Z.Min, Max: l.Z.Max},
			R: region.Range{Min: l.R.Min, Max: l.R.Max},
		},
	}
}

// StagePort returns the stage serial port.
func (p *Profile) StagePort() string {
	if p.CommPortStage != "" {
		return p.CommPortStage
	}
	return p.CommPortZaber
}

// ProbeTimeout returns the acquisition timeout.
func (p *Profile) ProbeTimeout() time.Duration { return seconds(p.ProbeTimeoutSec) }

// CheckProbe validates the acquisition settings. They are only used, and so
// only checked, when the profile collects data.
func (p *Profile) CheckProbe() error {
	if !p.CollectData {
		return nil
	}
	if !(p.ProbeTimeoutSec > 0) || math.IsInf(p.ProbeTimeoutSec, 1) {
		return &region.ConfigError{Field: "probe_timeout_sec", Msg: fmt.Sprintf("must be a positive number, got %v", p.ProbeTimeoutSec)}
	}
	if p.ProbeDiscardLines < 0 {
		return &region.ConfigError{Field: "probe_discard_lines", Msg: fmt.Sprintf("must not be negative, got %d", p.ProbeDiscardLines)}
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// CheckTravel reports every stage whose sweep extent falls outside its
// travel limits. It does not fail; out of range points are skipped at run
// time.
func (p *Profile) CheckTravel() []string {
	shape, err := p.NormalizedShape()
	if err != nil {
		return []string{err.Error()}
	}
	var halfX, halfY float64
	switch shape {
	case region.ShapeRectangular:
		halfX, halfY = p.XRange/2, p.YRange/2
	case region.ShapeCylindrical:
		halfX, halfY = p.Radius, p.Radius
	default:
		return nil
	}

	var res []string
	check := func(name string, off, half float64, r Range) {
		if off-half < r.Min || off+half > r.Max {
			res = append(res, fmt.Sprintf("%s stage out of range: %g..%g exceeds %g..%g", name, off-half, off+half, r.Min, r.Max))
		}
	}
	check("X", p.XOffset, halfX, p.StageLimits.X)
	check("Y", p.YOffset, halfY, p.StageLimits.Y)
	check("Z", p.ZOffset, p.ZRange/2, p.StageLimits.Z)
	return res
}

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the value type of a setting.
type Kind int

const (
	Int Kind = iota
	Float
	Text
	List
	Bool
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "integer"
	case Float:
		return "float"
	case Text:
		return "text"
	case List:
		return "list"
	case Bool:
		return "boolean"
	}
	return "unknown"
}

// Setting describes one profile key.
type Setting struct {
	Key  string
	Kind Kind
	Help string
}

// Schema lists every profile key in file order.
var Schema = []Setting{
	{"shape", Text, "rectangular, cylindrical or custom"},
	{"x_range", Float, "rectangular X extent, mm"},
	{"x_spacing", Float, "rectangular X step, mm"},
	{"y_range", Float, "rectangular Y extent, mm"},
	{"y_spacing", Float, "rectangular Y step, mm"},
	{"radius", Float, "cylindrical radius, mm"},
	{"xy_spacing", Float, "cylindrical grid step, mm"},
	{"custom_xyr_path_filename", Text, "CSV of x,y,rotation rows for custom shape"},
	{"z_range", Float, "Z extent, mm"},
	{"z_spacing", Float, "Z step, mm"},
	{"rotation_points", List, "rotation angles, degrees"},
	{"x_offset", Float, "X stage position of the mapper origin, mm"},
	{"y_offset", Float, "Y stage position of the mapper origin, mm"},
	{"z_offset", Float, "Z stage position of the mapper origin, mm"},
	{"x_accel", Float, "X acceleration, mm/s², 0 for device default"},
	{"y_accel", Float, "Y acceleration, mm/s², 0 for device default"},
	{"z_accel", Float, "Z acceleration, mm/s², 0 for device default"},
	{"probe_stop_time_sec", Float, "dwell before each reading, s"},
	{"collect_data", Bool, "read the probe at each point"},
	{"comm_port_stage", Text, "stage serial port"},
	{"comm_port_zaber", Text, "older name of comm_port_stage"},
	{"comm_port_probe", Text, "probe serial port"},
	{"probe_baud", Int, "probe baud rate"},
	{"probe_timeout_sec", Float, "time allowed for a valid reading, s"},
	{"probe_discard_lines", Int, "lines dropped after opening the probe"},
	{"stage_limits", List, "xmin,xmax,ymin,ymax,zmin,zmax,rmin,rmax"},
	{"path_filename", Text, "full path output"},
	{"path_edges_filename", Text, "boundary path output"},
	{"data_filename", Text, "data log output"},
}

// Lookup returns the setting for key.
func Lookup(key string) (Setting, bool) {
	for _, s := range Schema {
		if s.Key == key {
			return s, true
		}
	}
	return Setting{}, false
}

func (p *Profile) field(key string) any {
	switch key {
	case "shape":
		return &p.Shape
	case "x_range":
		return &p.XRange
	case "x_spacing":
		return &p.XSpacing
	case "y_range":
		return &p.YRange
	case "y_spacing":
		return &p.YSpacing
	case "radius":
		return &p.Radius
	case "xy_spacing":
		return &p.XYSpacing
	case "custom_xyr_path_filename":
		return &p.CustomPathFile
	case "z_range":
		return &p.ZRange
	case "z_spacing":
		return &p.ZSpacing
	case "rotation_points":
		return &p.RotationPoints
	case "x_offset":
		return &p.XOffset
	case "y_offset":
		return &p.YOffset
	case "z_offset":
		return &p.ZOffset
	case "x_accel":
		return &p.XAccel
	case "y_accel":
		return &p.YAccel
	case "z_accel":
		return &p.ZAccel
	case "probe_stop_time_sec":
		return &p.ProbeStopTimeSec
	case "collect_data":
		return &p.CollectData
	case "comm_port_stage":
		return &p.CommPortStage
	case "comm_port_zaber":
		return &p.CommPortZaber
	case "comm_port_probe":
		return &p.CommPortProbe
	case "probe_baud":
		return &p.ProbeBaud
	case "probe_timeout_sec":
		return &p.ProbeTimeoutSec
	case "probe_discard_lines":
		return &p.ProbeDiscardLines
	case "stage_limits":
		return &p.StageLimits
	case "path_filename":
		return &p.PathFilename
	case "path_edges_filename":
		return &p.PathEdgesFilename
	case "data_filename":
		return &p.DataFilename
	}
	return nil
}

func parseList(raw string) ([]float64, error) {
	var res []float64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, nil
}

// Set parses raw according to the declared kind of key and stores it.
func (p *Profile) Set(key, raw string) error {
	s, ok := Lookup(key)
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	wrap := func(err error) error {
		return fmt.Errorf("%s: expected %s: %w", key, s.Kind, err)
	}

	switch f := p.field(key).(type) {
	case *string:
		*f = raw
	case *float64:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return wrap(err)
		}
		*f = v
	case *int:
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return wrap(err)
		}
		*f = v
	case *Flag:
		v, err := parseFlag(raw)
		if err != nil {
			return wrap(err)
		}
		*f = v
	case *[]float64:
		v, err := parseList(raw)
		if err != nil {
			return wrap(err)
		}
		*f = v
	case *Limits:
		v, err := parseList(raw)
		if err != nil {
			return wrap(err)
		}
		if len(v) != 8 {
			return wrap(fmt.Errorf("need 8 values, got %d", len(v)))
		}
		*f = Limits{X: Range{v[0], v[1]}, Y: Range{v[2], v[3]}, Z: Range{v[4], v[5]}, R: Range{v[6], v[7]}}
	default:
		return fmt.Errorf("setting %q has no field", key)
	}
	return nil
}

// Get formats the current value of key.
func (p *Profile) Get(key string) (string, error) {
	switch f := p.field(key).(type) {
	case *string:
		return *f, nil
	case *float64:
		return strconv.FormatFloat(*f, 'g', -1, 64), nil
	case *int:
		return strconv.Itoa(*f), nil
	case *Flag:
		return strconv.FormatBool(bool(*f)), nil
	case *[]float64:
		parts := make([]string, len(*f))
		for i, v := range *f {
			parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		return strings.Join(parts, ","), nil
	case *Limits:
		return fmt.Sprintf("%g,%g,%g,%g,%g,%g,%g,%g", f.X.Min, f.X.Max, f.Y.Min, f.Y.Max, f.Z.Min, f.Z.Max, f.R.Min, f.R.Max), nil
	}
	return "", fmt.Errorf("unknown setting %q", key)
}

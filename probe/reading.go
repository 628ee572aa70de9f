// Package probe reads field values from a serial sensor that prints one
// reading per line, e.g. "12.345G".
package probe

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformed is returned by Parse for a line that is not a reading.
var ErrMalformed = errors.New("malformed reading")

// An optional sign, 1-5 integer digits, a decimal point, 1-4 fractional
// digits and exactly one unit character.
var readingRx = regexp.MustCompile(`^([+-]?[0-9]{1,5}\.[0-9]{1,4})([^0-9\s.+-])$`)

// Reading is a single sensor value.
type Reading struct {
	Value float64
	Unit  string
}

func (r Reading) String() string {
	return strconv.FormatFloat(r.Value, 'f', -1, 64) + r.Unit
}

// Parse parses one line of sensor output. Surrounding whitespace is ignored;
// anything else that does not match the reading grammar is rejected.
func Parse(line string) (Reading, error) {
	m := readingRx.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Reading{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %q: %v", ErrMalformed, line, err)
	}
	return Reading{Value: v, Unit: m[2]}, nil
}

package scanpath

import (
	"fmt"
	"time"
)

// perPointOverhead approximates the time spent moving between neighbouring
// points.
const perPointOverhead = time.Second

// Estimate approximates how long visiting n points takes with the given
// dwell at each.
func Estimate(n int, dwell time.Duration) time.Duration {
	return time.Duration(n) * (dwell + perPointOverhead)
}

// FormatEstimate renders d in seconds, minutes or hours with one decimal.
func FormatEstimate(d time.Duration) string {
	v := d.Seconds()
	unit := "seconds"
	if v >= 60 {
		v /= 60
		unit = "minutes"
		if v >= 60 {
			v /= 60
			unit = "hours"
		}
	}
	return fmt.Sprintf("%.1f %s", v, unit)
}

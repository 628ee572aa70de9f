package datalog

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/mastercactapus/fieldmap/machine"
)

// Summary describes the readings of one run.
type Summary struct {
	Points   int
	Acquired int
	Skipped  int

	// Reasons counts skipped records by reason.
	Reasons map[string]int

	// Units lists the distinct units seen, sorted.
	Units []string

	// Statistics of the acquired values; zero when nothing was acquired.
	Mean, StdDev float64
	Min, Max     float64
}

// Summarize computes a Summary over recs.
func Summarize(recs []machine.Record) Summary {
	s := Summary{Points: len(recs), Reasons: map[string]int{}}

	var vals []float64
	units := map[string]bool{}
	for _, r := range recs {
		switch r.Status {
		case machine.Acquired:
			s.Acquired++
			vals = append(vals, r.Value)
			units[r.Unit] = true
		case machine.Skipped:
			s.Skipped++
			s.Reasons[r.Reason]++
		}
	}
	for u := range units {
		s.Units = append(s.Units, u)
	}
	sort.Strings(s.Units)

	if len(vals) == 0 {
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(vals, nil)
	if len(vals) == 1 {
		s.StdDev = 0
	}
	s.Min = floats.Min(vals)
	s.Max = floats.Max(vals)
	return s
}

// WriteTo prints s as an aligned table.
func (s Summary) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "points\t%d\n", s.Points)
	fmt.Fprintf(tw, "acquired\t%d\n", s.Acquired)
	fmt.Fprintf(tw, "skipped\t%d\n", s.Skipped)

	reasons := make([]string, 0, len(s.Reasons))
	for r := range s.Reasons {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(tw, "  %s\t%d\n", r, s.Reasons[r])
	}
	if s.Acquired > 0 {
		fmt.Fprintf(tw, "units\t%v\n", s.Units)
		fmt.Fprintf(tw, "mean\t%.4f\n", s.Mean)
		fmt.Fprintf(tw, "stddev\t%.4f\n", s.StdDev)
		fmt.Fprintf(tw, "min\t%.4f\n", s.Min)
		fmt.Fprintf(tw, "max\t%.4f\n", s.Max)
	}
	err := tw.Flush()
	return cw.n, err
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

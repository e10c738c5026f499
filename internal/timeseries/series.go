// Package timeseries holds the 1-D series a diagnostic reduces its fields
// to before plotting.
package timeseries

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/diagerr"
)

// Series is a named sequence of values on increasing timestamps.
type Series struct {
	Name   string
	Times  []time.Time
	Values []float64
}

// New pairs times and values, which must have the same length.
func New(name string, times []time.Time, values []float64) (*Series, error) {
	if len(times) != len(values) {
		return nil, diagerr.Dataf("timeseries: %s has %d times and %d values", name, len(times), len(values))
	}
	return &Series{Name: name, Times: times, Values: values}, nil
}

// FromField reads a 1-D (time) field of ds as a series.
func FromField(ds *dataset.Dataset, name string) (*Series, error) {
	f, err := ds.Var(name)
	if err != nil {
		return nil, err
	}
	if f.RecordSize() != 1 {
		return nil, diagerr.Dataf("timeseries: %s has record shape %v, want a scalar per time", name, f.Shape[1:])
	}
	return New(name, ds.Times, f.Data)
}

// Len is the number of samples.
func (s *Series) Len() int {
	return len(s.Values)
}

// Between returns the samples with start <= t <= end, sharing storage.
func (s *Series) Between(start, end time.Time) *Series {
	lo := sort.Search(len(s.Times), func(i int) bool { return !s.Times[i].Before(start) })
	hi := sort.Search(len(s.Times), func(i int) bool { return s.Times[i].After(end) })
	if hi < lo {
		hi = lo
	}
	return &Series{Name: s.Name, Times: s.Times[lo:hi], Values: s.Values[lo:hi]}
}

// Scale returns a copy of s multiplied by c.
func (s *Series) Scale(c float64) *Series {
	v := append([]float64(nil), s.Values...)
	floats.Scale(c, v)
	return &Series{Name: s.Name, Times: s.Times, Values: v}
}

// MovingAverage returns the centred n-point running mean. Samples whose
// window runs off either end are NaN. For even n the window reaches one
// sample further back than forward.
func (s *Series) MovingAverage(n int) *Series {
	out := make([]float64, len(s.Values))
	if n <= 1 {
		copy(out, s.Values)
		return &Series{Name: s.Name, Times: s.Times, Values: out}
	}
	offset := (n - 1) / 2
	for i := range out {
		lo, hi := i+offset-n+1, i+offset
		if lo < 0 || hi >= len(s.Values) {
			out[i] = math.NaN()
			continue
		}
		out[i] = floats.Sum(s.Values[lo:hi+1]) / float64(n)
	}
	return &Series{Name: s.Name, Times: s.Times, Values: out}
}

// DecimalYears converts the timestamps to fractional years.
func (s *Series) DecimalYears() []float64 {
	out := make([]float64, len(s.Times))
	for i, t := range s.Times {
		out[i] = DecimalYear(t)
	}
	return out
}

// DecimalYear is t's year plus the elapsed fraction of that year.
func DecimalYear(t time.Time) float64 {
	t = t.UTC()
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	next := start.AddDate(1, 0, 0)
	return float64(t.Year()) + t.Sub(start).Seconds()/next.Sub(start).Seconds()
}

// FirstYear and LastYear are the calendar years of the first and last
// samples.
func (s *Series) FirstYear() int {
	if len(s.Times) == 0 {
		return 0
	}
	return s.Times[0].Year()
}

func (s *Series) LastYear() int {
	if len(s.Times) == 0 {
		return 0
	}
	return s.Times[len(s.Times)-1].Year()
}

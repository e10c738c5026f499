// Package anomaly expresses fields relative to the mean of a first-year
// baseline.
package anomaly

import (
	"context"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/diagerr"
	"github.com/oceanstats/mpas-diag/internal/timekeeping"
)

// Strategy says where the baseline year comes from.
type Strategy int

const (
	// FromWindow takes the first calendar year of the loaded window.
	FromWindow Strategy = iota
	// FromRunStart loads the run's own first year separately.
	FromRunStart
)

func (s Strategy) String() string {
	if s == FromRunStart {
		return "run-start"
	}
	return "window"
}

// ChooseBaseline returns FromRunStart when the simulation began before the
// analysis window, FromWindow otherwise.
func ChooseBaseline(simStart, windowStart time.Time) Strategy {
	if simStart.Before(windowStart) {
		return FromRunStart
	}
	return FromWindow
}

// FirstYearWindow is Jan 1 00:00 through Dec 31 00:00 of windowStart's
// year.
func FirstYearWindow(windowStart time.Time) (time.Time, time.Time) {
	y := windowStart.Year()
	return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// RunStartRange is the catalog date range covering the first year of a run
// that began at simStart: simStart through Dec 31 of the same year, at the
// same time of day.
func RunStartRange(simStart timekeeping.Date) (string, string) {
	return simStart.String(), simStart.WithMonthDay(12, 31).String()
}

// FirstYearLoader loads the records between two catalog dates.
type FirstYearLoader func(ctx context.Context, startDate, endDate string) (*dataset.Dataset, error)

// Baseline is the per-variable first-year mean and how it was obtained.
type Baseline struct {
	Strategy Strategy
	Start    time.Time
	End      time.Time
	Mean     map[string]*dataset.Field
}

// ComputeBaseline averages the first year over time. ds is the loaded
// analysis window starting at windowStart; load is only called when the run
// started before the window.
func ComputeBaseline(ctx context.Context, ds *dataset.Dataset, simStart timekeeping.Date, windowStart time.Time, yearOffset int, load FirstYearLoader) (*Baseline, error) {
	strategy := ChooseBaseline(simStart.ToTime(yearOffset), windowStart)

	var year *dataset.Dataset
	switch strategy {
	case FromRunStart:
		start, end := RunStartRange(simStart)
		loaded, err := load(ctx, start, end)
		if err != nil {
			return nil, err
		}
		year = loaded
	default:
		start, end := FirstYearWindow(windowStart)
		year = ds.SelectTime(start, end)
	}

	mean, err := year.Mean()
	if err != nil {
		return nil, diagerr.Dataf("anomaly: no first-year records for the %s baseline", strategy)
	}
	return &Baseline{Strategy: strategy, Start: year.Start(), End: year.End(), Mean: mean}, nil
}

// Subtract returns f minus mean at every time record. mean must have f's
// record shape.
func Subtract(f, mean *dataset.Field) (*dataset.Field, error) {
	n := f.RecordSize()
	if len(mean.Data) != n || len(mean.Shape) != len(f.Shape)-1 {
		return nil, diagerr.Dataf("anomaly: baseline of %s has shape %v, records have %v", f.Name, mean.Shape, f.Shape[1:])
	}
	out := make([]float64, len(f.Data))
	for t := 0; t < f.Len(); t++ {
		floats.SubTo(out[t*n:(t+1)*n], f.Record(t), mean.Data)
	}
	return &dataset.Field{Name: f.Name, Dims: f.Dims, Shape: append([]int(nil), f.Shape...), Data: out}, nil
}

// Apply subtracts the baseline mean from the named variable of ds.
func (b *Baseline) Apply(ds *dataset.Dataset, name string) (*dataset.Field, error) {
	f, err := ds.Var(name)
	if err != nil {
		return nil, err
	}
	mean, ok := b.Mean[name]
	if !ok {
		return nil, diagerr.Dataf("anomaly: baseline has no variable %s", name)
	}
	return Subtract(f, mean)
}

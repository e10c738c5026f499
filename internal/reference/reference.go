// Package reference loads precomputed series of a reference ("v0") run and
// lines them up with the primary run.
package reference

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/diagerr"
	"github.com/oceanstats/mpas-diag/internal/streams"
	"github.com/oceanstats/mpas-diag/internal/timeseries"
)

// Opener loads files as one merged dataset.
type Opener interface {
	Open(ctx context.Context, files []string, opts dataset.Options) (*dataset.Dataset, error)
}

// Configured reports whether caseName names a reference run. Empty and any
// casing of "none" mean no reference.
func Configured(caseName string) bool {
	return caseName != "" && !strings.EqualFold(caseName, "none")
}

// Files returns <dir>/<prefix>.<caseName>.year*.nc in name order.
func Files(dir, prefix, caseName string) ([]string, error) {
	pattern := filepath.Join(dir, fmt.Sprintf("%s.%s.year*.nc", prefix, caseName))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, diagerr.Config(eris.Wrapf(err, "reference: bad pattern %s", pattern))
	}
	if len(files) == 0 {
		return nil, diagerr.Dataf("reference: no files match %s", pattern)
	}
	sort.Strings(files)
	return files, nil
}

// Run is a loaded reference run.
type Run struct {
	Case   string
	Series map[string]*timeseries.Series
}

// Load reads the named variables of the reference files under dir.
func Load(ctx context.Context, o Opener, dir, prefix, caseName string, variables []string, yearOffset int) (*Run, error) {
	files, err := Files(dir, prefix, caseName)
	if err != nil {
		return nil, err
	}
	ds, err := o.Open(ctx, files, dataset.Options{
		Variables:   variables,
		VariableMap: streams.DerivedVariableMap,
		YearOffset:  yearOffset,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "reference: load %s", caseName)
	}

	run := &Run{Case: caseName, Series: make(map[string]*timeseries.Series, len(variables))}
	for _, v := range variables {
		s, err := timeseries.FromField(ds, v)
		if err != nil {
			return nil, eris.Wrapf(err, "reference: %s", caseName)
		}
		run.Series[v] = s
	}
	return run, nil
}

// LastYear is the calendar year of the latest sample of any series.
func (r *Run) LastYear() int {
	last := 0
	for _, s := range r.Series {
		if y := s.LastYear(); y > last {
			last = y
		}
	}
	return last
}

// Window restricts r to Jan 1 of firstYear through Dec 31 of lastYear.
// It returns false, and logs a warning, when the reference ends before
// firstYear.
func (r *Run) Window(firstYear, lastYear int) (*Run, bool) {
	if refEnd := r.LastYear(); firstYear > refEnd {
		zap.L().Warn("reference run lies outside the primary time series, skipping it",
			zap.String("component", "reference"),
			zap.String("case", r.Case),
			zap.Int("reference_last_year", refEnd),
			zap.Int("primary_first_year", firstYear),
		)
		return nil, false
	}

	start := time.Date(firstYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(lastYear, time.December, 31, 0, 0, 0, 0, time.UTC)
	out := &Run{Case: r.Case, Series: make(map[string]*timeseries.Series, len(r.Series))}
	for name, s := range r.Series {
		out.Series[name] = s.Between(start, end)
	}
	return out, true
}

// Get returns the named series.
func (r *Run) Get(name string) (*timeseries.Series, error) {
	s, ok := r.Series[name]
	if !ok {
		return nil, diagerr.Dataf("reference: %s has no series %s", r.Case, name)
	}
	return s, nil
}

package dataset

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/oceanstats/mpas-diag/internal/diagerr"
)

// Dataset is an ordered sequence of timestamped records. Every field's
// leading dimension has len(Times) entries.
type Dataset struct {
	Times  []time.Time
	Fields map[string]*Field
}

// Len is the number of time records.
func (d *Dataset) Len() int {
	return len(d.Times)
}

// Var returns the named field.
func (d *Dataset) Var(name string) (*Field, error) {
	f, ok := d.Fields[name]
	if !ok {
		return nil, diagerr.Dataf("dataset: variable %s not loaded", name)
	}
	return f, nil
}

// Names returns the field names in sorted order.
func (d *Dataset) Names() []string {
	names := make([]string, 0, len(d.Fields))
	for n := range d.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SelectTime returns the records with start <= t <= end. The result shares
// field storage with d.
func (d *Dataset) SelectTime(start, end time.Time) *Dataset {
	lo := sort.Search(len(d.Times), func(i int) bool { return !d.Times[i].Before(start) })
	hi := sort.Search(len(d.Times), func(i int) bool { return d.Times[i].After(end) })
	if hi < lo {
		hi = lo
	}
	return d.slice(lo, hi)
}

func (d *Dataset) slice(lo, hi int) *Dataset {
	out := &Dataset{
		Times:  d.Times[lo:hi],
		Fields: make(map[string]*Field, len(d.Fields)),
	}
	for name, f := range d.Fields {
		n := f.RecordSize()
		shape := append([]int{hi - lo}, f.Shape[1:]...)
		out.Fields[name] = &Field{Name: f.Name, Dims: f.Dims, Shape: shape, Data: f.Data[lo*n : hi*n]}
	}
	return out
}

// Start returns the first timestamp.
func (d *Dataset) Start() time.Time {
	if len(d.Times) == 0 {
		return time.Time{}
	}
	return d.Times[0]
}

// End returns the last timestamp.
func (d *Dataset) End() time.Time {
	if len(d.Times) == 0 {
		return time.Time{}
	}
	return d.Times[len(d.Times)-1]
}

// Mean averages every field over time. The result fields drop the time
// dimension.
func (d *Dataset) Mean() (map[string]*Field, error) {
	if len(d.Times) == 0 {
		return nil, diagerr.Dataf("dataset: mean over an empty time range")
	}
	out := make(map[string]*Field, len(d.Fields))
	for name, f := range d.Fields {
		acc := make([]float64, f.RecordSize())
		for t := 0; t < f.Len(); t++ {
			floats.Add(acc, f.Record(t))
		}
		floats.Scale(1/float64(f.Len()), acc)

		var dims []string
		if len(f.Dims) > 0 {
			dims = f.Dims[1:]
		}
		out[name] = &Field{Name: name, Dims: dims, Shape: append([]int(nil), f.Shape[1:]...), Data: acc}
	}
	return out, nil
}

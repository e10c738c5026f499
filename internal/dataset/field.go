// Package dataset opens many model output files as one time-indexed
// collection of numeric fields.
//
// Files are read into per-file chunks, renamed and time-shifted on the way
// in, then merged in catalog order by a single merger that owns
// deduplication of repeated timestamps. Field data is never modified in
// place once a Dataset is built.
package dataset

import (
	"github.com/rotisserie/eris"

	"github.com/oceanstats/mpas-diag/internal/diagerr"
)

// Field is a named, row-major numeric array. For fields that belong to a
// Dataset the leading dimension is time.
type Field struct {
	Name  string
	Dims  []string
	Shape []int
	Data  []float64
}

// NewField checks that data holds exactly the elements shape describes.
func NewField(name string, dims []string, shape []int, data []float64) (*Field, error) {
	if dims != nil && len(dims) != len(shape) {
		return nil, diagerr.Dataf("dataset: field %s has %d dims but shape %v", name, len(dims), shape)
	}
	if n := product(shape); n != len(data) {
		return nil, diagerr.Dataf("dataset: field %s shape %v needs %d values, got %d", name, shape, n, len(data))
	}
	return &Field{Name: name, Dims: dims, Shape: shape, Data: data}, nil
}

// Len returns the size of the leading dimension (1 for scalars).
func (f *Field) Len() int {
	if len(f.Shape) == 0 {
		return 1
	}
	return f.Shape[0]
}

// RecordSize is the number of values per leading-dimension entry.
func (f *Field) RecordSize() int {
	if len(f.Shape) == 0 {
		return 1
	}
	return product(f.Shape[1:])
}

// Record returns the values of leading-dimension entry i.
func (f *Field) Record(i int) []float64 {
	n := f.RecordSize()
	return f.Data[i*n : (i+1)*n]
}

// Index converts a multi-dimensional index into an offset into Data.
func (f *Field) Index(idx ...int) (int, error) {
	if len(idx) != len(f.Shape) {
		return 0, eris.Errorf("dataset: field %s has rank %d, indexed with %d", f.Name, len(f.Shape), len(idx))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= f.Shape[i] {
			return 0, eris.Errorf("dataset: field %s index %d out of range [0,%d) on dim %d", f.Name, v, f.Shape[i], i)
		}
		off = off*f.Shape[i] + v
	}
	return off, nil
}

// At returns the value at idx, panicking when idx is out of range.
func (f *Field) At(idx ...int) float64 {
	off, err := f.Index(idx...)
	if err != nil {
		panic(err)
	}
	return f.Data[off]
}

// SameShape reports whether f and o have identical shapes.
func (f *Field) SameShape(o *Field) bool {
	if len(f.Shape) != len(o.Shape) {
		return false
	}
	for i := range f.Shape {
		if f.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

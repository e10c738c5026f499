package dataset

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/oceanstats/mpas-diag/internal/diagerr"
)

// Merge concatenates chunks along time in the order src yields them.
// Repeated timestamps (restart-interval overlap between consecutive files)
// keep their first occurrence; the merged time axis must then be strictly
// increasing.
func Merge(ctx context.Context, src ChunkSource) (*Dataset, error) {
	m := &merger{seen: make(map[int64]bool)}
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "dataset: merge cancelled")
		}
		c, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := m.add(c); err != nil {
			return nil, err
		}
	}
	return m.finish()
}

type merger struct {
	times   []time.Time
	names   []string
	dims    map[string][]string
	shapes  map[string][]int
	data    map[string][]float64
	seen    map[int64]bool
	dropped int
	started bool
}

func (m *merger) add(c *Chunk) error {
	if !m.started {
		m.started = true
		m.dims = make(map[string][]string, len(c.Fields))
		m.shapes = make(map[string][]int, len(c.Fields))
		m.data = make(map[string][]float64, len(c.Fields))
		for name, f := range c.Fields {
			m.names = append(m.names, name)
			m.dims[name] = f.Dims
			m.shapes[name] = append([]int(nil), f.Shape[1:]...)
			m.data[name] = nil
		}
	}

	if len(c.Fields) != len(m.names) {
		return diagerr.Dataf("dataset: %s has %d variables, earlier files had %d", c.Source, len(c.Fields), len(m.names))
	}
	for _, name := range m.names {
		f, ok := c.Fields[name]
		if !ok {
			return diagerr.Dataf("dataset: %s is missing variable %s", c.Source, name)
		}
		if len(f.Shape) == 0 || f.Shape[0] != len(c.Times) {
			return diagerr.Dataf("dataset: %s variable %s does not have %d time records", c.Source, name, len(c.Times))
		}
		if !equalInts(f.Shape[1:], m.shapes[name]) {
			return diagerr.Dataf("dataset: %s variable %s has record shape %v, earlier files had %v",
				c.Source, name, f.Shape[1:], m.shapes[name])
		}
	}

	for i, t := range c.Times {
		key := t.UnixNano()
		if m.seen[key] {
			m.dropped++
			continue
		}
		m.seen[key] = true
		m.times = append(m.times, t)
		for _, name := range m.names {
			m.data[name] = append(m.data[name], c.Fields[name].Record(i)...)
		}
	}
	return nil
}

func (m *merger) finish() (*Dataset, error) {
	if !m.started {
		return nil, diagerr.Dataf("dataset: nothing to merge")
	}
	for i := 1; i < len(m.times); i++ {
		if !m.times[i].After(m.times[i-1]) {
			return nil, diagerr.Dataf("dataset: time axis not increasing at record %d (%s after %s)",
				i, m.times[i].Format(time.RFC3339), m.times[i-1].Format(time.RFC3339))
		}
	}
	if m.dropped > 0 {
		zap.L().Debug("dropped repeated time records",
			zap.String("component", "dataset"),
			zap.Int("dropped", m.dropped),
		)
	}

	ds := &Dataset{Times: m.times, Fields: make(map[string]*Field, len(m.names))}
	for _, name := range m.names {
		shape := append([]int{len(m.times)}, m.shapes[name]...)
		ds.Fields[name] = &Field{Name: name, Dims: m.dims[name], Shape: shape, Data: m.data[name]}
	}
	return ds, nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

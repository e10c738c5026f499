package dataset

import (
	"context"
	"sync"
	"time"

	"github.com/oceanstats/mpas-diag/internal/diagerr"
)

// fakeReader serves pre-built chunks by path and records the read order.
type fakeReader struct {
	mu     sync.Mutex
	chunks map[string]*Chunk
	reads  []string
}

func (f *fakeReader) ReadChunk(_ context.Context, path string, _ Options) (*Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, path)
	c, ok := f.chunks[path]
	if !ok {
		return nil, diagerr.Dataf("no chunk for %s", path)
	}
	return c, nil
}

func month(y, m int) time.Time {
	return time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
}

// monthlyChunk builds a chunk with one field "temp" of shape
// (time, 2 regions, 3 layers) whose values encode month and source file.
func monthlyChunk(source string, tag float64, year int, months ...int) *Chunk {
	times := make([]time.Time, len(months))
	data := make([]float64, 0, len(months)*6)
	for i, m := range months {
		times[i] = month(year, m)
		for k := 0; k < 6; k++ {
			data = append(data, tag*100+float64(m)+float64(k)/10)
		}
	}
	return &Chunk{
		Source: source,
		Times:  times,
		Fields: map[string]*Field{
			"temp": {Name: "temp", Dims: []string{"Time", "nRegions", "nVertLevels"}, Shape: []int{len(months), 2, 3}, Data: data},
		},
	}
}

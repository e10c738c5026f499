package diagnostic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oceanstats/mpas-diag/internal/config"
	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/diagerr"
	"github.com/oceanstats/mpas-diag/internal/plot"
	"github.com/oceanstats/mpas-diag/internal/timekeeping"
)

// fakeFile is the content of one model file: one record per date.
type fakeFile struct {
	dates  []timekeeping.Date
	fields map[string]*dataset.Field
}

// fakeReader serves fake files by base name.
type fakeReader struct {
	mu      sync.Mutex
	files   map[string]fakeFile
	static  map[string]map[string]*dataset.Field
	strings map[string]map[string]string
	reads   []string
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		files:   make(map[string]fakeFile),
		static:  make(map[string]map[string]*dataset.Field),
		strings: make(map[string]map[string]string),
	}
}

func (r *fakeReader) ReadChunk(_ context.Context, path string, opts dataset.Options) (*dataset.Chunk, error) {
	r.mu.Lock()
	r.reads = append(r.reads, filepath.Base(path))
	r.mu.Unlock()

	f, ok := r.files[filepath.Base(path)]
	if !ok {
		return nil, diagerr.Dataf("fake: no file %s", path)
	}
	c := &dataset.Chunk{Source: path, Fields: make(map[string]*dataset.Field)}
	for _, d := range f.dates {
		c.Times = append(c.Times, d.ToTime(opts.YearOffset))
	}
	for name, field := range f.fields {
		if len(opts.Variables) > 0 && !contains(opts.Variables, name) {
			continue
		}
		c.Fields[name] = field
	}
	for _, v := range opts.Variables {
		if _, ok := c.Fields[v]; !ok {
			return nil, diagerr.Dataf("fake: variable %s not in %s", v, path)
		}
	}
	return c, nil
}

func (r *fakeReader) ReadStatic(_ context.Context, path string, names ...string) (map[string]*dataset.Field, error) {
	vars := r.static[filepath.Base(path)]
	out := make(map[string]*dataset.Field, len(names))
	for _, n := range names {
		f, ok := vars[n]
		if !ok {
			return nil, diagerr.Dataf("fake: no static %s in %s", n, path)
		}
		out[n] = f
	}
	return out, nil
}

func (r *fakeReader) ReadString(_ context.Context, path, name string) (string, error) {
	s, ok := r.strings[filepath.Base(path)][name]
	if !ok {
		return "", diagerr.Dataf("fake: no string %s in %s", name, path)
	}
	return s, nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// captureRenderer records figures instead of drawing them.
type captureRenderer struct {
	figures map[string]plot.Figure
	paths   []string
	err     error
}

func newCaptureRenderer() *captureRenderer {
	return &captureRenderer{figures: make(map[string]plot.Figure)}
}

func (c *captureRenderer) Render(fig plot.Figure, path string) error {
	if c.err != nil {
		return c.err
	}
	c.figures[filepath.Base(path)] = fig
	c.paths = append(c.paths, path)
	return nil
}

// record builds a single-record field.
func record(name string, shape []int, fill func(i int) float64) *dataset.Field {
	n := 1
	for _, s := range shape {
		n *= s
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = fill(i)
	}
	return &dataset.Field{Name: name, Shape: append([]int{1}, shape...), Data: data}
}

func constant(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

func vector(name string, values ...float64) *dataset.Field {
	return &dataset.Field{Name: name, Shape: []int{len(values)}, Data: values}
}

func date(year, month int) timekeeping.Date {
	return timekeeping.Date{Year: year, Month: month, Day: 1}
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

// loadINI writes body and loads it as the only config file.
func loadINI(t *testing.T, body string) *config.Config {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.analysis")
	writeFile(t, p, body)
	cfg, err := config.Load(p)
	require.NoError(t, err)
	return cfg
}

func monthName(prefix string, d timekeeping.Date) string {
	return fmt.Sprintf("%s.%04d-%02d-%02d.nc", prefix, d.Year, d.Month, d.Day)
}

func lineValues(l plot.Line) []float64 {
	return l.Series.Values
}

package reference

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/diagerr"
	"github.com/oceanstats/mpas-diag/internal/streams"
)

type fakeOpener struct {
	files []string
	opts  dataset.Options
	ds    *dataset.Dataset
}

func (f *fakeOpener) Open(_ context.Context, files []string, opts dataset.Options) (*dataset.Dataset, error) {
	f.files, f.opts = files, opts
	return f.ds, nil
}

func yearly(first, last int) *dataset.Dataset {
	var times []time.Time
	var vals []float64
	for y := first; y <= last; y++ {
		times = append(times, time.Date(y, time.July, 1, 0, 0, 0, 0, time.UTC))
		vals = append(vals, float64(y))
	}
	return &dataset.Dataset{
		Times:  times,
		Fields: map[string]*dataset.Field{"ohc_tot": {Name: "ohc_tot", Shape: []int{len(vals)}, Data: vals}},
	}
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
	}
}

func TestConfigured(t *testing.T) {
	assert.False(t, Configured(""))
	assert.False(t, Configured("None"))
	assert.False(t, Configured("none"))
	assert.True(t, Configured("B1850C5_ne30_v0.4"))
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "OHC.v0run.year0002.nc", "OHC.v0run.year0001.nc", "OHC.other.year0001.nc", "SST.v0run.year0001.nc")

	files, err := Files(dir, "OHC", "v0run")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "OHC.v0run.year0001.nc"),
		filepath.Join(dir, "OHC.v0run.year0002.nc"),
	}, files)

	_, err = Files(dir, "OHC", "missing")
	require.Error(t, err)
	assert.True(t, diagerr.IsData(err))
}

func TestLoadAndWindow(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "OHC.v0run.year0001.nc")
	o := &fakeOpener{ds: yearly(1850, 1870)}

	run, err := Load(context.Background(), o, dir, "OHC", "v0run", []string{"ohc_tot"}, 1849)
	require.NoError(t, err)
	assert.Equal(t, 1849, o.opts.YearOffset)
	assert.Equal(t, []string{"ohc_tot"}, o.opts.Variables)
	assert.Equal(t, streams.DerivedVariableMap, o.opts.VariableMap)
	assert.Equal(t, 1870, run.LastYear())

	win, ok := run.Window(1855, 1860)
	require.True(t, ok)
	s, err := win.Get("ohc_tot")
	require.NoError(t, err)
	assert.Equal(t, []float64{1855, 1856, 1857, 1858, 1859, 1860}, s.Values)

	_, err = win.Get("ohc_700m")
	assert.True(t, diagerr.IsData(err))
}

func TestWindow_SkipsWhenReferenceEndsEarly(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "OHC.v0run.year0001.nc")
	run, err := Load(context.Background(), &fakeOpener{ds: yearly(1850, 1859)}, dir, "OHC", "v0run", []string{"ohc_tot"}, 0)
	require.NoError(t, err)

	win, ok := run.Window(1860, 1870)
	assert.False(t, ok)
	assert.Nil(t, win)

	// Overlapping by a single year still compares.
	_, ok = run.Window(1859, 1870)
	assert.True(t, ok)
}

// writeSeries writes a reference file with a character xtime axis.
func writeSeries(t *testing.T, path string, xtime []string, values []float64) {
	t.Helper()
	attrs, err := util.NewOrderedMap([]string{}, map[string]interface{}{})
	require.NoError(t, err)
	cw, err := cdf.OpenWriter(path)
	require.NoError(t, err)
	require.NoError(t, cw.AddVar("xtime", api.Variable{
		Values:     xtime,
		Dimensions: []string{"Time", "StrLen"},
		Attributes: attrs,
	}))
	require.NoError(t, cw.AddVar("ohc_tot", api.Variable{
		Values:     values,
		Dimensions: []string{"Time"},
		Attributes: attrs,
	}))
	require.NoError(t, cw.Close())
}

func TestLoad_NetCDFWithXtime(t *testing.T) {
	dir := t.TempDir()
	writeSeries(t, filepath.Join(dir, "OHC.v0run.year0001.nc"),
		[]string{"0001-01-01_00:00:00", "0001-07-01_00:00:00"}, []float64{1, 2})
	writeSeries(t, filepath.Join(dir, "OHC.v0run.year0002.nc"),
		[]string{"0002-01-01_00:00:00", "0002-07-01_00:00:00"}, []float64{3, 4})

	run, err := Load(context.Background(), dataset.NewLoader(dataset.NetCDFReader{}), dir, "OHC", "v0run", []string{"ohc_tot"}, 1849)
	require.NoError(t, err)

	s, err := run.Get("ohc_tot")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, s.Values)
	assert.Equal(t, time.Date(1850, time.July, 1, 0, 0, 0, 0, time.UTC), s.Times[1])
	assert.Equal(t, 1851, run.LastYear())
}

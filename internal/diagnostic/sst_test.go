package diagnostic

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/diagerr"
)

func TestSST_Run(t *testing.T) {
	run := newOceanRun(t, 1, 2, "")

	res, err := (&SST{}).Run(context.Background(), run.env)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(run.plots, "sst_atlantic_testcase.png")}, res.Plots)

	fig := run.renderer.figures["sst_atlantic_testcase.png"]
	assert.Equal(t, "SST, Atlantic Ocean, testcase (r-)", fig.Title)
	assert.Equal(t, 1, fig.MovingAverage)
	require.Len(t, fig.Lines, 1)

	values := lineValues(fig.Lines[0])
	require.Len(t, values, 24)
	assert.Equal(t, 21.0, values[0])
	assert.Equal(t, 32.0, values[23])
}

func TestSST_WithReference(t *testing.T) {
	run := newOceanRun(t, 1, 2, "")
	run.withReference(t, "SST", []string{"SST"}, 1, 2)

	res, err := (&SST{}).Run(context.Background(), run.env)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(run.plots, "sst_atlantic_testcase_v0run.png")}, res.Plots)

	fig := run.renderer.figures["sst_atlantic_testcase_v0run.png"]
	require.Len(t, fig.Lines, 2)
	assert.Equal(t, "b-", fig.Lines[1].Style)
	assert.Equal(t, []float64{100, 101}, lineValues(fig.Lines[1]))
	assert.Contains(t, fig.Title, "v0run (b-)")
}

func TestSST_RenderError(t *testing.T) {
	run := newOceanRun(t, 1, 2, "")
	run.renderer.err = diagerr.Dataf("plot: nothing to draw")

	_, err := (&SST{}).Run(context.Background(), run.env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "atlantic")
}

func TestRegionColumn(t *testing.T) {
	f := &dataset.Field{Name: "sst", Shape: []int{2, 3}, Data: []float64{1, 2, 3, 4, 5, 6}}
	col, err := regionColumn(f, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5}, col)

	_, err = regionColumn(f, 3)
	assert.True(t, diagerr.IsConfig(err))

	_, err = regionColumn(&dataset.Field{Name: "x", Shape: []int{2}, Data: []float64{1, 2}}, 0)
	assert.True(t, diagerr.IsData(err))
}

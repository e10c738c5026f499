package diagnostic

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/diagerr"
	"github.com/oceanstats/mpas-diag/internal/timekeeping"
)

const seaIceStreamsXML = `<streams>
<immutable_stream name="restart"
                  type="input;output"
                  filename_template="restarts/restart.seaice.$Y-$M-$D_$h.$m.$s.nc"
                  filename_interval="input_interval"/>
<stream name="timeSeriesStatsMonthly"
        type="output"
        filename_template="mpascice.hist.am.timeSeriesStatsMonthly.$Y-$M-$D.nc"
        filename_interval="0000-01-00_00:00:00"/>
</streams>
`

const seaIceRestart = "restart.seaice.0001-01-01_00.00.00.nc"

type seaIceRun struct {
	*oceanRun
	obsDir string
}

// newSeaIceRun lays out a one-year run on a four-cell mesh: two northern
// cells, one southern and one on the equator.
func newSeaIceRun(t *testing.T, compareObs bool) *seaIceRun {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "streams.seaice"), seaIceStreamsXML)
	touch(t, filepath.Join(dir, "restarts", seaIceRestart))

	reader := newFakeReader()
	reader.static[seaIceRestart] = map[string]*dataset.Field{
		"areaCell": vector("areaCell", 1e6, 2e6, 3e6, 4e6),
		"latCell":  vector("latCell", 1.2, 0.5, -0.7, 0),
	}
	reader.strings[seaIceRestart] = map[string]string{"simulationStartTime": "0001-01-01_00:00:00"}
	for month := 1; month <= 12; month++ {
		d := date(1, month)
		name := monthName("mpascice.hist.am.timeSeriesStatsMonthly", d)
		touch(t, filepath.Join(dir, name))
		reader.files[name] = fakeFile{
			dates: []timekeeping.Date{d},
			fields: map[string]*dataset.Field{
				"iceAreaCell":   record("iceAreaCell", []int{4}, constant(1)),
				"iceVolumeCell": record("iceVolumeCell", []int{4}, constant(2)),
			},
		}
	}

	obsDir := t.TempDir()
	obsNH := filepath.Join(obsDir, "iceAreaNH.nc")
	touch(t, obsNH)
	obs := fakeFile{fields: map[string]*dataset.Field{}}
	values := make([]float64, 0, 36)
	for y := 1849; y <= 1851; y++ {
		for m := 1; m <= 12; m++ {
			obs.dates = append(obs.dates, timekeeping.Date{Year: y, Month: m, Day: 15})
			values = append(values, float64(y-1848))
		}
	}
	obs.fields["IceArea"] = &dataset.Field{Name: "IceArea", Shape: []int{len(values)}, Data: values}
	reader.files["iceAreaNH.nc"] = obs

	plots := filepath.Join(t.TempDir(), "plots")
	cfg := loadINI(t, fmt.Sprintf(`[case]
casename = icecase
ref_casename_v0 = None

[input]
basedir = %s
seaice_streams_filename = streams.seaice

[output]
basedir = %s

[time]
yr_offset = 1849
timeseries_yr1 = 1
timeseries_yr2 = 1

[seaice_timeseries]
N_movavg = 1
compare_with_obs = %t

[seaIceData]
obs_iceareaNH = %s
obs_iceareaSH = none
obs_icevolNH = none
obs_icevolSH = none
`, dir, filepath.Dir(plots), compareObs, obsNH))
	require.NoError(t, cfg.ApplyTimeDefaults())

	renderer := newCaptureRenderer()
	return &seaIceRun{
		oceanRun: &oceanRun{
			dir: dir, plots: plots, cfg: cfg, reader: reader, renderer: renderer,
			env: &Env{Config: cfg, Loader: dataset.NewLoader(reader), Static: reader, Renderer: renderer, PlotsDir: plots},
		},
		obsDir: obsDir,
	}
}

func TestSeaIce_Run(t *testing.T) {
	run := newSeaIceRun(t, false)

	res, err := (&SeaIce{}).Run(context.Background(), run.env)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(run.plots, "icearea_nh_icecase.png"),
		filepath.Join(run.plots, "icearea_sh_icecase.png"),
		filepath.Join(run.plots, "icevol_nh_icecase.png"),
		filepath.Join(run.plots, "icevol_sh_icecase.png"),
	}, res.Plots)
	assert.Empty(t, res.Skipped)

	// NH cells have 3e6 m^2, SH cells 3e6 m^2; the equator cell counts for neither.
	nh := run.renderer.figures["icearea_nh_icecase.png"]
	assert.Equal(t, "Ice area, NH\n icecase (r-)", nh.Title)
	assert.Equal(t, "[km^2]", nh.YLabel)
	require.Len(t, nh.Lines, 1)
	assert.InDeltaSlice(t, repeat(3, 12), lineValues(nh.Lines[0]), 1e-9)

	vol := run.renderer.figures["icevol_sh_icecase.png"]
	assert.InDeltaSlice(t, repeat(6e-6, 12), lineValues(vol.Lines[0]), 1e-15)
}

func TestSeaIce_Observations(t *testing.T) {
	run := newSeaIceRun(t, true)

	res, err := (&SeaIce{}).Run(context.Background(), run.env)
	require.NoError(t, err)
	assert.Len(t, res.Plots, 4)
	assert.Len(t, res.Skipped, 3, "three observation files are none")

	nh := run.renderer.figures["icearea_nh_icecase.png"]
	require.Len(t, nh.Lines, 2)
	assert.Equal(t, "k-", nh.Lines[1].Style)
	assert.Contains(t, nh.Title, "observations (k-)")
	// Only the observation year that overlaps the model year is kept.
	assert.Equal(t, repeat(2, 12), lineValues(nh.Lines[1]))

	sh := run.renderer.figures["icearea_sh_icecase.png"]
	assert.Len(t, sh.Lines, 1)
}

func TestSeaIce_ObservationsOutsideRun(t *testing.T) {
	run := newSeaIceRun(t, true)
	obs := run.reader.files["iceAreaNH.nc"]
	for i := range obs.dates {
		obs.dates[i].Year -= 200
	}

	res, err := (&SeaIce{}).Run(context.Background(), run.env)
	require.NoError(t, err)
	require.Len(t, res.Skipped, 4)
	assert.Contains(t, res.Skipped, fmt.Sprintf("observations %s cover 1649-1651, outside 1850-1850",
		filepath.Join(run.obsDir, "iceAreaNH.nc")))
	assert.Len(t, run.renderer.figures["icearea_nh_icecase.png"].Lines, 1)
}

func TestSeaIce_Requires(t *testing.T) {
	run := newSeaIceRun(t, true)
	checks, err := (&SeaIce{}).Requires(run.cfg)
	require.NoError(t, err)
	assert.Equal(t, []PathCheck{
		{Section: "seaIceData", Option: "obs_iceareaNH", Ignore: "none"},
		{Section: "seaIceData", Option: "obs_iceareaSH", Ignore: "none"},
		{Section: "seaIceData", Option: "obs_icevolNH", Ignore: "none"},
		{Section: "seaIceData", Option: "obs_icevolSH", Ignore: "none"},
	}, checks)

	run.cfg.Set("seaice_timeseries", "compare_with_obs", "False")
	run.cfg.Set("case", "ref_casename_v0", "v0run")
	checks, err = (&SeaIce{}).Requires(run.cfg)
	require.NoError(t, err)
	assert.Equal(t, []PathCheck{{Section: "paths", Option: "ref_archive_v0_seaicedir"}}, checks)
}

func TestHemisphereWeights(t *testing.T) {
	area := []float64{1, 2, 3, 4}
	lat := []float64{0.1, -0.1, 0, 0.3}

	w, err := hemisphereWeights(area, lat, hemispheres[0])
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 4}, w)

	w, err = hemisphereWeights(area, lat, hemispheres[1])
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 0, 0}, w)

	_, err = hemisphereWeights(area, lat[:2], hemispheres[0])
	assert.True(t, diagerr.IsData(err))
}

func TestHemisphereSum_ShapeMismatch(t *testing.T) {
	f := record("iceAreaCell", []int{3}, constant(1))
	_, err := hemisphereSum(f, []float64{1, 2}, 1)
	assert.True(t, diagerr.IsData(err))
}

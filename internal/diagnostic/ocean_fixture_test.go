package diagnostic

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oceanstats/mpas-diag/internal/config"
	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/timekeeping"
)

const oceanStreamsXML = `<streams>
<immutable_stream name="restart"
                  type="input;output"
                  filename_template="restarts/restart.$Y-$M-$D_$h.$m.$s.nc"
                  filename_interval="input_interval"
                  input_interval="initial_only"/>
<stream name="timeSeriesStatsMonthlyOutput"
        type="output"
        filename_template="analysis_members/mpaso.hist.am.timeSeriesStatsMonthly.$Y-$M-$D.nc"
        filename_interval="0000-01-00_00:00:00"
        output_interval="00-01-00_00:00:00"/>
</streams>
`

// rho*cp = 1e22 makes the OHC scale factor exactly one.
const oceanNamelist = `&physical_vars
    config_density0 = 1.0d11
    config_specific_heat_sea_water = 1.0d11
/
`

const restartFileName = "restart.0001-01-01_00.00.00.nc"

// ohcDepths give k700m = 1, k2000m = 3, kbtm = 5.
var ohcDepths = []float64{100, 500, 800, 1500, 3000, 4000}

const (
	nRegions = 2
	nLayers  = 6
)

type oceanRun struct {
	dir      string
	plots    string
	cfg      *config.Config
	reader   *fakeReader
	renderer *captureRenderer
	env      *Env
}

// newOceanRun lays out a two-year monthly run. Temperature is 10 in year 1
// and 11 in year 2 in every region and layer; surface temperature is the
// month number in region 0 and 20 plus the month in region 1.
func newOceanRun(t *testing.T, yr1, yr2 int, extra string) *oceanRun {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "streams.ocean"), oceanStreamsXML)
	writeFile(t, filepath.Join(dir, "namelist.ocean"), oceanNamelist)
	touch(t, filepath.Join(dir, "restarts", restartFileName))

	reader := newFakeReader()
	reader.static[restartFileName] = map[string]*dataset.Field{
		"refBottomDepth": vector("refBottomDepth", ohcDepths...),
	}
	reader.strings[restartFileName] = map[string]string{"simulationStartTime": "0001-01-01_00:00:00"}

	shape := []int{nRegions, nLayers}
	for year := 1; year <= 2; year++ {
		for month := 1; month <= 12; month++ {
			d := date(year, month)
			name := monthName("mpaso.hist.am.timeSeriesStatsMonthly", d)
			touch(t, filepath.Join(dir, "analysis_members", name))
			m := float64(month)
			reader.files[name] = fakeFile{
				dates: []timekeeping.Date{d},
				fields: map[string]*dataset.Field{
					"avgLayerTemperature": record("avgLayerTemperature", shape, constant(9+float64(year))),
					"sumLayerMaskValue":   record("sumLayerMaskValue", shape, constant(1)),
					"avgLayerArea":        record("avgLayerArea", shape, constant(1)),
					"avgLayerThickness":   record("avgLayerThickness", shape, constant(1)),
					"avgSurfaceTemperature": record("avgSurfaceTemperature", []int{nRegions}, func(i int) float64 {
						return m + 20*float64(i)
					}),
				},
			}
		}
	}

	plots := filepath.Join(t.TempDir(), "plots")
	body := fmt.Sprintf(`[case]
casename = testcase
ref_casename_v0 = None

[input]
basedir = %s
ocean_streams_filename = streams.ocean
ocean_namelist_filename = namelist.ocean

[output]
basedir = %s
generate = ['all_ocean']

[paths]
plots_dir = %s

[time]
yr_offset = 1849
timeseries_yr1 = %d
timeseries_yr2 = %d

[regions]
regions = ['global', 'atlantic']
plot_titles = ['Global Ocean', 'Atlantic Ocean']

[ohc_timeseries]
N_movavg = 12
compare_with_obs = False
regionIndicesToPlot = [0, 1]

[sst_timeseries]
N_movavg = 1
regionIndicesToPlot = [1]
%s`, dir, filepath.Dir(plots), plots, yr1, yr2, extra)

	cfg := loadINI(t, body)
	require.NoError(t, cfg.ApplyTimeDefaults())

	renderer := newCaptureRenderer()
	return &oceanRun{
		dir:      dir,
		plots:    plots,
		cfg:      cfg,
		reader:   reader,
		renderer: renderer,
		env: &Env{
			Config:   cfg,
			Loader:   dataset.NewLoader(reader),
			Static:   reader,
			Renderer: renderer,
			PlotsDir: plots,
		},
	}
}

// withReference adds a reference archive whose series cover the given
// model years, one record per year.
func (r *oceanRun) withReference(t *testing.T, prefix string, vars []string, years ...int) string {
	t.Helper()
	refDir := filepath.Join(t.TempDir(), "v0")
	name := fmt.Sprintf("%s.v0run.year%04d-%04d.nc", prefix, years[0], years[len(years)-1])
	touch(t, filepath.Join(refDir, name))

	f := fakeFile{fields: make(map[string]*dataset.Field)}
	for _, y := range years {
		f.dates = append(f.dates, date(y, 1))
	}
	for i, v := range vars {
		values := make([]float64, len(years))
		for j := range values {
			values[j] = float64(100*(i+1) + j)
		}
		f.fields[v] = &dataset.Field{Name: v, Shape: []int{len(years)}, Data: values}
	}
	r.reader.files[name] = f

	r.cfg.Set("case", "ref_casename_v0", "v0run")
	r.cfg.Set("paths", "ref_archive_v0_ocndir", refDir)
	return refDir
}

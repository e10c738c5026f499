package diagnostic

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/oceanstats/mpas-diag/internal/anomaly"
	"github.com/oceanstats/mpas-diag/internal/config"
	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/integrate"
	"github.com/oceanstats/mpas-diag/internal/namelist"
	"github.com/oceanstats/mpas-diag/internal/plot"
	"github.com/oceanstats/mpas-diag/internal/reference"
	"github.com/oceanstats/mpas-diag/internal/streams"
	"github.com/oceanstats/mpas-diag/internal/timeseries"
)

// Band depth limits in metres.
const (
	ohcShallowDepth = 700.0
	ohcMidDepth     = 2000.0
)

// Reference series names in OHC.<case>.year*.nc files.
var ohcReferenceVars = []string{"ohc_tot", "ohc_700m", "ohc_2000m", "ohc_btm"}

var ohcVars = []string{"avgLayerTemperature", "sumLayerMaskValue", "avgLayerArea", "avgLayerThickness"}

// OHC plots ocean heat content anomaly time series for the whole column
// and three depth bands.
type OHC struct{}

func (*OHC) Name() string     { return "ohc_timeseries" }
func (*OHC) Core() string     { return CoreOcean }
func (*OHC) Category() string { return CategoryTimeSeries }
func (*OHC) Section() string  { return "ohc_timeseries" }

func (*OHC) Requires(cfg *config.Config) ([]PathCheck, error) {
	return oceanReferenceChecks(cfg), nil
}

func oceanReferenceChecks(cfg *config.Config) []PathCheck {
	if !hasReference(cfg) {
		return nil
	}
	return []PathCheck{{Section: "paths", Option: referenceDirOption(CoreOcean)}}
}

// ohcInputs is what the OHC computation reads besides the monthly stream.
type ohcInputs struct {
	depths []float64
	scale  float64
}

func (d *OHC) readInputs(ctx context.Context, env *Env, restart string) (*ohcInputs, error) {
	cfg := env.Config
	dir, err := cfg.Get("input", "basedir")
	if err != nil {
		return nil, err
	}
	nlName, err := cfg.Get("input", "ocean_namelist_filename")
	if err != nil {
		return nil, err
	}
	nl, err := namelist.Open(nlName, dir)
	if err != nil {
		return nil, err
	}
	// [J/(kg degC)] and [kg/m3]
	cp, err := nl.GetFloat("config_specific_heat_sea_water")
	if err != nil {
		return nil, err
	}
	rho, err := nl.GetFloat("config_density0")
	if err != nil {
		return nil, err
	}

	static, err := env.Static.ReadStatic(ctx, restart, "refBottomDepth")
	if err != nil {
		return nil, err
	}
	return &ohcInputs{depths: static["refBottomDepth"].Data, scale: 1e-22 * rho * cp}, nil
}

func (d *OHC) Run(ctx context.Context, env *Env) (*Result, error) {
	log := zap.L().With(zap.String("component", "diagnostic"), zap.String("diagnostic", d.Name()))
	cfg := env.Config

	w, err := loadWindow(cfg)
	if err != nil {
		return nil, err
	}
	regions, err := loadRegions(cfg, d.Section())
	if err != nil {
		return nil, err
	}
	nAvg, err := movingAverage(cfg, d.Section())
	if err != nil {
		return nil, err
	}

	sf, err := openStreams(cfg, CoreOcean)
	if err != nil {
		return nil, err
	}
	restart, err := restartFile(sf, "MPAS-O")
	if err != nil {
		return nil, eris.Wrap(err, "ohc: need at least one restart file")
	}
	simStart, err := simulationStart(ctx, env.Static, restart)
	if err != nil {
		return nil, err
	}
	in, err := d.readInputs(ctx, env, restart)
	if err != nil {
		return nil, err
	}
	cuts, err := integrate.NewCutPoints(in.depths, ohcShallowDepth, ohcMidDepth)
	if err != nil {
		return nil, err
	}
	log.Debug("depth cut points",
		zap.Int("k700m", cuts.Shallow), zap.Int("k2000m", cuts.Mid), zap.Int("kbtm", cuts.Bottom),
		zap.Ints("unbanded_layers", cuts.BoundaryLayers()))

	loader, err := newStreamLoader(env, sf, streams.OceanStreamMap, dataset.Options{
		Variables:     ohcVars,
		VariableMap:   streams.OceanVariableMap,
		YearOffset:    w.yearOffset,
		TimeReference: simStart,
	})
	if err != nil {
		return nil, err
	}
	ds, err := loader.loadWindow(ctx, w)
	if err != nil {
		return nil, err
	}

	baseline, err := anomaly.ComputeBaseline(ctx, ds, simStart, w.start, w.yearOffset, loader.load)
	if err != nil {
		return nil, err
	}
	log.Info("computed first-year baseline",
		zap.Stringer("strategy", baseline.Strategy),
		zap.Time("start", baseline.Start),
		zap.Time("end", baseline.End),
	)
	tAnom, err := baseline.Apply(ds, "avgLayerTemperature")
	if err != nil {
		return nil, err
	}

	cubes := make(map[string]*integrate.Cube, len(ohcVars))
	for _, name := range ohcVars[1:] {
		f, err := ds.Var(name)
		if err != nil {
			return nil, err
		}
		if cubes[name], err = integrate.CubeFromField(f); err != nil {
			return nil, err
		}
	}
	q, err := integrate.CubeFromField(tAnom)
	if err != nil {
		return nil, err
	}
	weights, err := integrate.VolumeWeights(cubes["sumLayerMaskValue"], cubes["avgLayerArea"], cubes["avgLayerThickness"])
	if err != nil {
		return nil, err
	}

	first, last := ds.Start().Year(), ds.End().Year()
	res := &Result{}
	ref, skipped, err := loadReference(ctx, env, w, CoreOcean, "OHC", ohcReferenceVars, first, last)
	if err != nil {
		return nil, err
	}
	if skipped != "" {
		res.Skipped = append(res.Skipped, skipped)
	}

	for _, ir := range regions.indices {
		r, err := integrate.Integrate(q, weights, ir, cuts, in.scale)
		if err != nil {
			return nil, eris.Wrapf(err, "ohc: region %s", regions.names[ir])
		}
		lines, err := ohcLines(ds, r, ref)
		if err != nil {
			return nil, err
		}

		title := fmt.Sprintf("OHC, %s, 0-bottom (thick-), 0-700m (thin-), 700-2000m (--), 2000m-bottom (-.) \n %s",
			regions.titles[ir], w.caseName)
		refCase := ""
		if ref != nil {
			refCase = w.refCase
			title = fmt.Sprintf("%s (r), %s (b)", title, w.refCase)
		}
		path := figureName(env.PlotsDir, "ohc", regions.names[ir], w.caseName, refCase)
		fig := plot.Figure{
			Title:         title,
			XLabel:        xLabelYears,
			YLabel:        "[x10^22 J]",
			Lines:         lines,
			MovingAverage: nAvg,
		}
		if err := env.Renderer.Render(fig, path); err != nil {
			return nil, err
		}
		log.Info("wrote plot", zap.String("region", regions.names[ir]), zap.String("path", path))
		res.Plots = append(res.Plots, path)
	}
	return res, nil
}

var (
	ohcStyles = []string{"-", "-", "--", "-."}
	ohcWidths = []float64{2, 1, 1.5, 1.5}
	ohcLabels = []string{"0-bottom", "0-700m", "700-2000m", "2000m-bottom"}
)

func ohcLines(ds *dataset.Dataset, r *integrate.Result, ref *reference.Run) ([]plot.Line, error) {
	values := [][]float64{r.Total, r.Shallow, r.Mid, r.Deep}
	lines := make([]plot.Line, 0, 8)
	for i, v := range values {
		s, err := timeseries.New(ohcReferenceVars[i], ds.Times, v)
		if err != nil {
			return nil, err
		}
		lines = append(lines, plot.Line{Series: s, Style: "r" + ohcStyles[i], Width: ohcWidths[i], Label: ohcLabels[i]})
	}
	if ref == nil {
		return lines, nil
	}
	for i, name := range ohcReferenceVars {
		s, err := ref.Get(name)
		if err != nil {
			return nil, err
		}
		lines = append(lines, plot.Line{Series: s, Style: "b" + ohcStyles[i], Width: ohcWidths[i]})
	}
	return lines, nil
}

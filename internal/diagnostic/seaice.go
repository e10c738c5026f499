package diagnostic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/oceanstats/mpas-diag/internal/config"
	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/diagerr"
	"github.com/oceanstats/mpas-diag/internal/plot"
	"github.com/oceanstats/mpas-diag/internal/streams"
	"github.com/oceanstats/mpas-diag/internal/timeseries"
)

const obsSection = "seaIceData"

// seaIceQuantity is one integrated sea-ice field.
type seaIceQuantity struct {
	prefix    string // figure and reference file prefix
	variable  string // per-cell model field
	title     string
	ylabel    string
	factor    float64 // m^2 or m^3 to plotted units
	obsPrefix string  // [seaIceData] option prefix
	obsVar    string  // option naming the variable in observation files
	obsVarDef string
}

var seaIceQuantities = []seaIceQuantity{
	{
		prefix: "icearea", variable: "iceAreaCell", title: "Ice area", ylabel: "[km^2]", factor: 1e-6,
		obsPrefix: "obs_iceareaNH", obsVar: "obs_icearea_variable", obsVarDef: "IceArea",
	},
	{
		prefix: "icevol", variable: "iceVolumeCell", title: "Ice volume", ylabel: "[10^3 km^3]", factor: 1e-12,
		obsPrefix: "obs_icevolNH", obsVar: "obs_icevol_variable", obsVarDef: "IceVol",
	},
}

// hemisphere selects cells by latitude sign.
type hemisphere struct {
	name  string // nh or sh
	label string // NH or SH
	north bool
}

var hemispheres = []hemisphere{
	{name: "nh", label: "NH", north: true},
	{name: "sh", label: "SH", north: false},
}

// obsOption is the [seaIceData] option of q's observation file for h.
func (q seaIceQuantity) obsOption(h hemisphere) string {
	return strings.TrimSuffix(q.obsPrefix, "NH") + h.label
}

// SeaIce plots hemispheric sea-ice area and volume time series.
type SeaIce struct{}

func (*SeaIce) Name() string     { return "seaice_timeseries" }
func (*SeaIce) Core() string     { return CoreSeaIce }
func (*SeaIce) Category() string { return CategoryTimeSeries }
func (*SeaIce) Section() string  { return "seaice_timeseries" }

func (d *SeaIce) Requires(cfg *config.Config) ([]PathCheck, error) {
	var checks []PathCheck
	if hasReference(cfg) {
		checks = append(checks, PathCheck{Section: "paths", Option: referenceDirOption(CoreSeaIce)})
	}
	obs, err := compareWithObs(cfg, d.Section())
	if err != nil {
		return nil, err
	}
	if obs {
		for _, q := range seaIceQuantities {
			for _, h := range hemispheres {
				checks = append(checks, PathCheck{Section: obsSection, Option: q.obsOption(h), Ignore: "none"})
			}
		}
	}
	return checks, nil
}

// hemisphereWeights returns per-cell areas with cells of the other
// hemisphere zeroed. Equator cells belong to neither.
func hemisphereWeights(area, lat []float64, h hemisphere) ([]float64, error) {
	if len(area) != len(lat) {
		return nil, diagerr.Dataf("seaice: areaCell has %d cells, latCell has %d", len(area), len(lat))
	}
	w := make([]float64, len(area))
	for i := range area {
		if (h.north && lat[i] > 0) || (!h.north && lat[i] < 0) {
			w[i] = area[i]
		}
	}
	return w, nil
}

// hemisphereSum integrates a (time, nCells) field against w.
func hemisphereSum(f *dataset.Field, w []float64, factor float64) ([]float64, error) {
	if f.RecordSize() != len(w) {
		return nil, diagerr.Dataf("seaice: %s has %d cells per record, mesh has %d", f.Name, f.RecordSize(), len(w))
	}
	out := make([]float64, f.Len())
	for t := range out {
		out[t] = floats.Dot(f.Record(t), w)
	}
	floats.Scale(factor, out)
	return out, nil
}

func (d *SeaIce) Run(ctx context.Context, env *Env) (*Result, error) {
	log := zap.L().With(zap.String("component", "diagnostic"), zap.String("diagnostic", d.Name()))
	cfg := env.Config

	w, err := loadWindow(cfg)
	if err != nil {
		return nil, err
	}
	nAvg, err := movingAverage(cfg, d.Section())
	if err != nil {
		return nil, err
	}
	withObs, err := compareWithObs(cfg, d.Section())
	if err != nil {
		return nil, err
	}

	sf, err := openStreams(cfg, CoreSeaIce)
	if err != nil {
		return nil, err
	}
	restart, err := restartFile(sf, "MPAS-SeaIce")
	if err != nil {
		return nil, eris.Wrap(err, "seaice: need a restart file for the mesh")
	}
	mesh, err := env.Static.ReadStatic(ctx, restart, "areaCell", "latCell")
	if err != nil {
		return nil, err
	}
	simStart, err := simulationStart(ctx, env.Static, restart)
	if err != nil {
		return nil, err
	}

	vars := make([]string, len(seaIceQuantities))
	for i, q := range seaIceQuantities {
		vars[i] = q.variable
	}
	loader, err := newStreamLoader(env, sf, streams.SeaIceStreamMap, dataset.Options{
		Variables:     vars,
		VariableMap:   streams.SeaIceVariableMap,
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
	first, last := ds.Start().Year(), ds.End().Year()

	res := &Result{}
	for _, q := range seaIceQuantities {
		f, err := ds.Var(q.variable)
		if err != nil {
			return nil, err
		}
		refVars := []string{q.prefix + "_nh", q.prefix + "_sh"}
		ref, skipped, err := loadReference(ctx, env, w, CoreSeaIce, q.prefix, refVars, first, last)
		if err != nil {
			return nil, err
		}
		if skipped != "" {
			res.Skipped = append(res.Skipped, skipped)
		}

		for _, h := range hemispheres {
			weights, err := hemisphereWeights(mesh["areaCell"].Data, mesh["latCell"].Data, h)
			if err != nil {
				return nil, err
			}
			values, err := hemisphereSum(f, weights, q.factor)
			if err != nil {
				return nil, err
			}
			s, err := timeseries.New(q.prefix+"_"+h.name, ds.Times, values)
			if err != nil {
				return nil, err
			}

			title := fmt.Sprintf("%s, %s\n %s (r-)", q.title, h.label, w.caseName)
			lines := []plot.Line{{Series: s, Style: "r-", Width: 1.2, Label: w.caseName}}
			refCase := ""
			if ref != nil {
				rs, err := ref.Get(q.prefix + "_" + h.name)
				if err != nil {
					return nil, err
				}
				lines = append(lines, plot.Line{Series: rs, Style: "b-", Width: 1.2, Label: w.refCase})
				title = fmt.Sprintf("%s, %s (b-)", title, w.refCase)
				refCase = w.refCase
			}
			if withObs {
				obs, skip, err := d.loadObs(ctx, env, q, h, first, last)
				if err != nil {
					return nil, err
				}
				if skip != "" {
					log.Warn("skipping observations", zap.String("reason", skip))
					res.Skipped = append(res.Skipped, skip)
				} else {
					lines = append(lines, plot.Line{Series: obs, Style: "k-", Width: 1.2, Label: "observations"})
					title += ", observations (k-)"
				}
			}

			path := figureName(env.PlotsDir, q.prefix, h.name, w.caseName, refCase)
			fig := plot.Figure{
				Title:         title,
				XLabel:        xLabelYears,
				YLabel:        q.ylabel,
				Lines:         lines,
				MovingAverage: nAvg,
			}
			if err := env.Renderer.Render(fig, path); err != nil {
				return nil, eris.Wrapf(err, "seaice: %s %s", q.prefix, h.label)
			}
			log.Info("wrote plot", zap.String("path", path))
			res.Plots = append(res.Plots, path)
		}
	}
	return res, nil
}

// loadObs reads one observation series and restricts it to the primary
// years. A skip reason is returned when the file is "none" or the series
// does not overlap.
func (d *SeaIce) loadObs(ctx context.Context, env *Env, q seaIceQuantity, h hemisphere, first, last int) (*timeseries.Series, string, error) {
	option := q.obsOption(h)
	path, ok, err := env.Config.PathExistence(obsSection, option, "none")
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, fmt.Sprintf("[%s] %s is none", obsSection, option), nil
	}
	name := env.Config.GetWithDefault(obsSection, q.obsVar, q.obsVarDef)
	ds, err := env.Loader.Open(ctx, []string{path}, dataset.Options{
		Variables:     []string{name},
		VariableMap:   streams.DerivedVariableMap,
		TimeReference: modelEpoch,
	})
	if err != nil {
		return nil, "", eris.Wrapf(err, "seaice: observations %s", path)
	}
	s, err := timeseries.FromField(ds, name)
	if err != nil {
		return nil, "", err
	}
	windowed := s.Between(time.Date(first, time.January, 1, 0, 0, 0, 0, time.UTC), time.Date(last, time.December, 31, 0, 0, 0, 0, time.UTC))
	if windowed.Len() == 0 {
		return nil, fmt.Sprintf("observations %s cover %d-%d, outside %d-%d",
			path, s.FirstYear(), s.LastYear(), first, last), nil
	}
	return windowed, "", nil
}

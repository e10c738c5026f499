package diagnostic

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/oceanstats/mpas-diag/internal/config"
	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/diagerr"
	"github.com/oceanstats/mpas-diag/internal/plot"
	"github.com/oceanstats/mpas-diag/internal/streams"
	"github.com/oceanstats/mpas-diag/internal/timeseries"
)

const sstVar = "avgSurfaceTemperature"

// SST plots regional mean sea-surface temperature time series.
type SST struct{}

func (*SST) Name() string     { return "sst_timeseries" }
func (*SST) Core() string     { return CoreOcean }
func (*SST) Category() string { return CategoryTimeSeries }
func (*SST) Section() string  { return "sst_timeseries" }

func (*SST) Requires(cfg *config.Config) ([]PathCheck, error) {
	return oceanReferenceChecks(cfg), nil
}

func (d *SST) Run(ctx context.Context, env *Env) (*Result, error) {
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
	loader, err := newStreamLoader(env, sf, streams.OceanStreamMap, dataset.Options{
		Variables:     []string{sstVar},
		VariableMap:   streams.OceanVariableMap,
		YearOffset:    w.yearOffset,
		TimeReference: timeReference(ctx, env, sf, CoreOcean),
	})
	if err != nil {
		return nil, err
	}
	ds, err := loader.loadWindow(ctx, w)
	if err != nil {
		return nil, err
	}
	sst, err := ds.Var(sstVar)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	ref, skipped, err := loadReference(ctx, env, w, CoreOcean, "SST", []string{"SST"}, ds.Start().Year(), ds.End().Year())
	if err != nil {
		return nil, err
	}
	if skipped != "" {
		res.Skipped = append(res.Skipped, skipped)
	}

	for _, ir := range regions.indices {
		values, err := regionColumn(sst, ir)
		if err != nil {
			return nil, err
		}
		s, err := timeseries.New(regions.names[ir], ds.Times, values)
		if err != nil {
			return nil, err
		}
		lines := []plot.Line{{Series: s, Style: "r-", Width: 1.2, Label: w.caseName}}

		title := fmt.Sprintf("SST, %s, %s (r-)", regions.titles[ir], w.caseName)
		refCase := ""
		if ref != nil {
			refSeries, err := ref.Get("SST")
			if err != nil {
				return nil, err
			}
			lines = append(lines, plot.Line{Series: refSeries, Style: "b-", Width: 1.2, Label: w.refCase})
			refCase = w.refCase
			title = fmt.Sprintf("%s\n %s (b-)", title, w.refCase)
		}

		path := figureName(env.PlotsDir, "sst", regions.names[ir], w.caseName, refCase)
		fig := plot.Figure{
			Title:         title,
			XLabel:        xLabelYears,
			YLabel:        "[degC]",
			Lines:         lines,
			MovingAverage: nAvg,
		}
		if err := env.Renderer.Render(fig, path); err != nil {
			return nil, eris.Wrapf(err, "sst: region %s", regions.names[ir])
		}
		log.Info("wrote plot", zap.String("region", regions.names[ir]), zap.String("path", path))
		res.Plots = append(res.Plots, path)
	}
	return res, nil
}

// regionColumn extracts region r from a (time, region) field.
func regionColumn(f *dataset.Field, r int) ([]float64, error) {
	if len(f.Shape) != 2 {
		return nil, diagerr.Dataf("diagnostic: %s has shape %v, want (time, region)", f.Name, f.Shape)
	}
	if r >= f.Shape[1] {
		return nil, diagerr.Configf("diagnostic: region index %d out of range, %s has %d regions", r, f.Name, f.Shape[1])
	}
	out := make([]float64, f.Len())
	for t := range out {
		out[t] = f.At(t, r)
	}
	return out, nil
}

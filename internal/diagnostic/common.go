package diagnostic

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/oceanstats/mpas-diag/internal/config"
	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/diagerr"
	"github.com/oceanstats/mpas-diag/internal/reference"
	"github.com/oceanstats/mpas-diag/internal/streams"
	"github.com/oceanstats/mpas-diag/internal/timekeeping"
)

const (
	xLabelYears = "Time [years]"
	restartName = "restart"
)

// modelEpoch is 0001-01-01, the default origin of MPAS time axes.
var modelEpoch = timekeeping.MustParseDate(timekeeping.YearStart(1))

// window is the analysis period shared by every time-series diagnostic.
type window struct {
	caseName   string
	refCase    string // empty when no reference run is configured
	yearOffset int
	startDate  string
	endDate    string
	start      time.Time
	end        time.Time
}

func loadWindow(cfg *config.Config) (*window, error) {
	caseName, err := cfg.Get("case", "casename")
	if err != nil {
		return nil, err
	}
	w := &window{caseName: caseName}
	if hasReference(cfg) {
		w.refCase, _ = cfg.Get("case", "ref_casename_v0")
	}
	if w.yearOffset, err = cfg.GetInt("time", "yr_offset"); err != nil {
		return nil, err
	}
	if w.startDate, err = cfg.Get("time", "timeseries_start_date"); err != nil {
		return nil, err
	}
	if w.endDate, err = cfg.Get("time", "timeseries_end_date"); err != nil {
		return nil, err
	}

	start, err := timekeeping.ParseDate(w.startDate)
	if err != nil {
		return nil, diagerr.Config(eris.Wrap(err, "diagnostic: [time] timeseries_start_date"))
	}
	end, err := timekeeping.ParseDate(w.endDate)
	if err != nil {
		return nil, diagerr.Config(eris.Wrap(err, "diagnostic: [time] timeseries_end_date"))
	}
	if end.Before(start) {
		return nil, diagerr.Configf("diagnostic: time series ends (%s) before it starts (%s)", w.endDate, w.startDate)
	}
	w.start, w.end = start.ToTime(w.yearOffset), end.ToTime(w.yearOffset)
	return w, nil
}

// regionSet is the ocean regions one diagnostic plots.
type regionSet struct {
	names   []string
	titles  []string
	indices []int
}

var titleCaser = cases.Title(language.English)

// regionTitle is used when [regions] plot_titles is not configured.
func regionTitle(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

func loadRegions(cfg *config.Config, section string) (*regionSet, error) {
	names, err := cfg.GetStrings("regions", "regions")
	if err != nil {
		return nil, err
	}
	rs := &regionSet{names: names}
	if cfg.Has("regions", "plot_titles") {
		if rs.titles, err = cfg.GetStrings("regions", "plot_titles"); err != nil {
			return nil, err
		}
		if len(rs.titles) != len(names) {
			return nil, diagerr.Configf("diagnostic: [regions] has %d regions but %d plot_titles", len(names), len(rs.titles))
		}
	} else {
		for _, n := range names {
			rs.titles = append(rs.titles, regionTitle(n))
		}
	}

	if rs.indices, err = cfg.GetInts(section, "regionIndicesToPlot"); err != nil {
		return nil, err
	}
	for _, i := range rs.indices {
		if i < 0 || i >= len(names) {
			return nil, diagerr.Configf("diagnostic: [%s] regionIndicesToPlot has %d, only %d regions defined", section, i, len(names))
		}
	}
	return rs, nil
}

// openStreams reads the stream index of one MPAS core from the input dir.
func openStreams(cfg *config.Config, core string) (*streams.StreamsFile, error) {
	dir, err := cfg.Get("input", "basedir")
	if err != nil {
		return nil, err
	}
	name, err := cfg.Get("input", core+"_streams_filename")
	if err != nil {
		return nil, err
	}
	return streams.Open(name, dir)
}

// restartFile is the first restart file of the run.
func restartFile(sf *streams.StreamsFile, core string) (string, error) {
	files, err := sf.ReadPath(restartName)
	if err != nil {
		return "", diagerr.Data(eris.Wrapf(err, "diagnostic: no %s restart file found", core))
	}
	return files[0], nil
}

// simulationStart reads simulationStartTime from a restart file.
func simulationStart(ctx context.Context, r dataset.StaticReader, restart string) (timekeeping.Date, error) {
	s, err := r.ReadString(ctx, restart, "simulationStartTime")
	if err != nil {
		return timekeeping.Date{}, err
	}
	d, err := timekeeping.ParseDate(s)
	if err != nil {
		return timekeeping.Date{}, diagerr.Data(eris.Wrapf(err, "diagnostic: simulationStartTime in %s", restart))
	}
	return d, nil
}

// timeReference is the simulation start when a restart file is available,
// used to decode time axes counted in days. Its absence only matters for
// such files, so it is not an error here.
func timeReference(ctx context.Context, env *Env, sf *streams.StreamsFile, core string) timekeeping.Date {
	restart, err := restartFile(sf, core)
	if err != nil {
		zap.L().Debug("no restart file, numeric time axes cannot be decoded",
			zap.String("component", "diagnostic"), zap.String("core", core))
		return modelEpoch
	}
	d, err := simulationStart(ctx, env.Static, restart)
	if err != nil {
		zap.L().Debug("no simulation start time", zap.String("component", "diagnostic"), zap.Error(err))
		return modelEpoch
	}
	return d
}

// streamLoader resolves one stream's files for a date range and opens them.
type streamLoader struct {
	env    *Env
	sf     *streams.StreamsFile
	stream string
	opts   dataset.Options
}

func newStreamLoader(env *Env, sf *streams.StreamsFile, streamMap streams.NameMap, opts dataset.Options) (*streamLoader, error) {
	name, err := sf.FindStream(streamMap.Candidates(streams.TimeSeriesStats))
	if err != nil {
		return nil, err
	}
	return &streamLoader{env: env, sf: sf, stream: name, opts: opts}, nil
}

func (l *streamLoader) load(ctx context.Context, startDate, endDate string) (*dataset.Dataset, error) {
	files, err := l.sf.Resolve(l.stream, startDate, endDate)
	if err != nil {
		return nil, err
	}
	zap.L().Info("reading files",
		zap.String("component", "diagnostic"),
		zap.String("stream", l.stream),
		zap.String("first", files[0]),
		zap.String("last", files[len(files)-1]),
	)
	return l.env.Loader.Open(ctx, files, l.opts)
}

// loadWindow opens the stream over w and keeps the records inside it.
func (l *streamLoader) loadWindow(ctx context.Context, w *window) (*dataset.Dataset, error) {
	ds, err := l.load(ctx, w.startDate, w.endDate)
	if err != nil {
		return nil, err
	}
	ds = ds.SelectTime(w.start, w.end)
	if ds.Len() == 0 {
		return nil, diagerr.Dataf("diagnostic: stream %s has no records between %s and %s", l.stream, w.startDate, w.endDate)
	}
	return ds, nil
}

// figureName is <prefix>_<region>_<case>[_<ref>].png under dir.
func figureName(dir, prefix, region, caseName, refCase string) string {
	name := fmt.Sprintf("%s_%s_%s", prefix, region, caseName)
	if refCase != "" {
		name += "_" + refCase
	}
	return filepath.Join(dir, name+".png")
}

// movingAverage reads N_movavg from section; absent means no smoothing.
func movingAverage(cfg *config.Config, section string) (int, error) {
	if !cfg.Has(section, "N_movavg") {
		return 1, nil
	}
	n, err := cfg.GetInt(section, "N_movavg")
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, diagerr.Configf("diagnostic: [%s] N_movavg must be >= 1, got %d", section, n)
	}
	return n, nil
}

// compareWithObs reads compare_with_obs from section, defaulting to false.
func compareWithObs(cfg *config.Config, section string) (bool, error) {
	if !cfg.Has(section, "compare_with_obs") {
		return false, nil
	}
	return cfg.GetBool(section, "compare_with_obs")
}

// hasReference reports whether [case] ref_casename_v0 names a run.
func hasReference(cfg *config.Config) bool {
	ref, err := cfg.Get("case", "ref_casename_v0")
	return err == nil && reference.Configured(ref)
}

// referenceDir is the directory holding precomputed reference series for
// one core: [paths] ref_archive_v0_<ocndir|seaicedir>.
func referenceDir(cfg *config.Config, core string) (string, error) {
	return cfg.Get("paths", referenceDirOption(core))
}

func referenceDirOption(core string) string {
	if core == CoreSeaIce {
		return "ref_archive_v0_seaicedir"
	}
	return "ref_archive_v0_ocndir"
}

// loadReference loads and windows the reference run. A nil run with a
// skip message means the comparison is dropped.
func loadReference(ctx context.Context, env *Env, w *window, core, prefix string, variables []string, firstYear, lastYear int) (*reference.Run, string, error) {
	if w.refCase == "" {
		return nil, "", nil
	}
	dir, err := referenceDir(env.Config, core)
	if err != nil {
		return nil, "", err
	}
	run, err := reference.Load(ctx, env.Loader, dir, prefix, w.refCase, variables, w.yearOffset)
	if err != nil {
		return nil, "", err
	}
	windowed, ok := run.Window(firstYear, lastYear)
	if !ok {
		return nil, fmt.Sprintf("reference %s (%s) ends in %d, before %d", w.refCase, prefix, run.LastYear(), firstYear), nil
	}
	return windowed, "", nil
}

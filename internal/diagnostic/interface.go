// Package diagnostic holds the registry of analyses, the rules that select
// them, and the engine that runs the selection in order.
package diagnostic

import (
	"context"

	"github.com/oceanstats/mpas-diag/internal/config"
	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/plot"
)

// Core names the MPAS component a diagnostic reads.
const (
	CoreOcean  = "ocean"
	CoreSeaIce = "seaice"
)

// CategoryTimeSeries is the only analysis category implemented.
const CategoryTimeSeries = "timeseries"

// PathCheck is a config option naming a file or directory that must exist
// before a diagnostic runs. When Ignore is set, that value marks the input
// as optional.
type PathCheck struct {
	Section string
	Option  string
	Ignore  string
}

// Result is the outcome of a diagnostic run.
type Result struct {
	Plots []string `json:"plots"`
	// Skipped lists comparisons dropped with a warning (reference run
	// outside the window, optional observations set to none).
	Skipped []string `json:"skipped,omitempty"`
}

// Opener loads files as one merged dataset.
type Opener interface {
	Open(ctx context.Context, files []string, opts dataset.Options) (*dataset.Dataset, error)
}

// FigureRenderer draws a figure to an image file.
type FigureRenderer interface {
	Render(fig plot.Figure, path string) error
}

// Env is what every diagnostic runs against.
type Env struct {
	Config   *config.Config
	Loader   Opener
	Static   dataset.StaticReader
	Renderer FigureRenderer
	PlotsDir string
}

// Diagnostic is one analysis that turns model output into plots.
type Diagnostic interface {
	// Name is the identifier used by generate tokens (e.g. "ohc_timeseries").
	Name() string

	// Core is the MPAS component, CoreOcean or CoreSeaIce.
	Core() string

	// Category groups diagnostics for all_<category> tokens.
	Category() string

	// Section is the config section holding the diagnostic's options.
	Section() string

	// Requires lists input paths to check before anything runs.
	Requires(cfg *config.Config) ([]PathCheck, error)

	// Run computes the diagnostic and writes its plots.
	Run(ctx context.Context, env *Env) (*Result, error)
}

package diagnostic

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/oceanstats/mpas-diag/internal/config"
	"github.com/oceanstats/mpas-diag/internal/diagerr"
)

// RunLog records the outcome of each diagnostic. The runlog store
// implements it.
type RunLog interface {
	StartDiagnostic(ctx context.Context, runID, name string) (string, error)
	CompleteDiagnostic(ctx context.Context, entryID string, plots, skipped []string) error
	FailDiagnostic(ctx context.Context, entryID, errMsg string) error
}

// Engine runs the selected diagnostics in registry order.
type Engine struct {
	reg    *Registry
	env    *Env
	runLog RunLog // nil disables recording
	runID  string
}

// RunOpts configures a run.
type RunOpts struct {
	// ContinueOnError logs and records a failed diagnostic and moves on
	// instead of aborting the run.
	ContinueOnError bool
}

// Summary is the outcome of Engine.Run.
type Summary struct {
	Selected  []string
	Completed []string
	Failed    map[string]error
	Plots     []string
	Skipped   []string
}

// NewEngine creates a new engine. runLog may be nil.
func NewEngine(reg *Registry, env *Env, runLog RunLog, runID string) *Engine {
	return &Engine{
		reg:    reg,
		env:    env,
		runLog: runLog,
		runID:  runID,
	}
}

// Selected evaluates [output] generate against the registry.
func (e *Engine) Selected() ([]Diagnostic, error) {
	elements, err := e.env.Config.GetStrings("output", "generate")
	if err != nil {
		return nil, err
	}
	tokens := ParseTokens(elements)
	for _, t := range tokens {
		if t.Kind != TokenName || t.Scope == "" {
			continue
		}
		if _, err := e.reg.Get(t.Scope); err != nil {
			zap.L().Warn("generate names an unknown diagnostic, ignoring it",
				zap.String("component", "diagnostic.engine"), zap.Error(err))
		}
	}
	return e.reg.Select(tokens), nil
}

// Prepare fills the time-window defaults, checks every input path the
// selected diagnostics need and creates the plots directory. Nothing has
// been computed when it fails.
func (e *Engine) Prepare(selected []Diagnostic) error {
	log := zap.L().With(zap.String("component", "diagnostic.engine"))
	cfg := e.env.Config

	if err := cfg.ApplyTimeDefaults(); err != nil {
		return err
	}

	seen := make(map[PathCheck]bool)
	for _, d := range selected {
		checks, err := d.Requires(cfg)
		if err != nil {
			return eris.Wrapf(err, "engine: requirements of %s", d.Name())
		}
		for _, c := range checks {
			if seen[c] {
				continue
			}
			seen[c] = true
			if _, _, err := cfg.PathExistence(c.Section, c.Option, c.Ignore); err != nil {
				return err
			}
		}
	}

	if e.env.PlotsDir == "" {
		dir, err := cfg.PlotsDir()
		if err != nil {
			return err
		}
		e.env.PlotsDir = dir
	}
	if err := config.MakeDirs(e.env.PlotsDir); err != nil {
		return err
	}

	pc, err := cfg.Plot()
	if err != nil {
		return err
	}
	if pc.DisplayToScreen {
		log.Warn("displayToScreen is not supported, plots are only written to disk")
	}
	return nil
}

// Run selects, prepares and runs diagnostics. With ContinueOnError the
// returned error reports how many diagnostics failed; otherwise it is the
// first failure.
func (e *Engine) Run(ctx context.Context, opts RunOpts) (*Summary, error) {
	log := zap.L().With(zap.String("component", "diagnostic.engine"))

	selected, err := e.Selected()
	if err != nil {
		return nil, err
	}
	summary := &Summary{Failed: make(map[string]error)}
	for _, d := range selected {
		summary.Selected = append(summary.Selected, d.Name())
	}
	if len(selected) == 0 {
		log.Info("no diagnostics selected")
		return summary, nil
	}
	log.Info("selected diagnostics", zap.Strings("names", summary.Selected))

	if err := e.Prepare(selected); err != nil {
		return summary, err
	}

	for _, d := range selected {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		dLog := log.With(zap.String("diagnostic", d.Name()), zap.String("core", d.Core()))
		dLog.Info("starting diagnostic")

		entryID := e.startEntry(ctx, dLog, d.Name())
		start := time.Now()
		result, err := d.Run(ctx, e.env)
		elapsed := time.Since(start)

		if err != nil {
			dLog.Error("diagnostic failed", zap.Error(err),
				zap.Stringer("kind", diagerr.KindOf(err)), zap.Duration("elapsed", elapsed))
			e.failEntry(ctx, dLog, entryID, err)
			summary.Failed[d.Name()] = err
			if !opts.ContinueOnError {
				return summary, eris.Wrapf(err, "engine: %s", d.Name())
			}
			continue
		}

		e.completeEntry(ctx, dLog, entryID, result)
		dLog.Info("diagnostic complete",
			zap.Int("plots", len(result.Plots)),
			zap.Int("skipped", len(result.Skipped)),
			zap.Duration("elapsed", elapsed),
		)
		summary.Completed = append(summary.Completed, d.Name())
		summary.Plots = append(summary.Plots, result.Plots...)
		summary.Skipped = append(summary.Skipped, result.Skipped...)
	}

	log.Info("engine run complete",
		zap.Int("completed", len(summary.Completed)),
		zap.Int("failed", len(summary.Failed)),
		zap.Int("plots", len(summary.Plots)),
	)
	if n := len(summary.Failed); n > 0 {
		return summary, eris.Errorf("engine: %d of %d diagnostics failed", n, len(selected))
	}
	return summary, nil
}

func (e *Engine) startEntry(ctx context.Context, log *zap.Logger, name string) string {
	if e.runLog == nil {
		return ""
	}
	id, err := e.runLog.StartDiagnostic(ctx, e.runID, name)
	if err != nil {
		log.Error("failed to record diagnostic start", zap.Error(err))
		return ""
	}
	return id
}

func (e *Engine) failEntry(ctx context.Context, log *zap.Logger, id string, runErr error) {
	if e.runLog == nil || id == "" {
		return
	}
	if err := e.runLog.FailDiagnostic(ctx, id, runErr.Error()); err != nil {
		log.Error("failed to record diagnostic failure", zap.Error(err))
	}
}

func (e *Engine) completeEntry(ctx context.Context, log *zap.Logger, id string, r *Result) {
	if e.runLog == nil || id == "" {
		return
	}
	if err := e.runLog.CompleteDiagnostic(ctx, id, r.Plots, r.Skipped); err != nil {
		log.Error("failed to record diagnostic completion", zap.Error(err))
	}
}

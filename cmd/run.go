package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/plot/vg"

	"github.com/oceanstats/mpas-diag/internal/config"
	"github.com/oceanstats/mpas-diag/internal/dataset"
	"github.com/oceanstats/mpas-diag/internal/diagerr"
	"github.com/oceanstats/mpas-diag/internal/diagnostic"
	"github.com/oceanstats/mpas-diag/internal/plot"
	"github.com/oceanstats/mpas-diag/internal/runlog"
)

var (
	runGenerate        string
	runContinueOnError bool
	runConcurrency     int
)

var runCmd = &cobra.Command{
	Use:   "run CONFIG...",
	Short: "Compute the selected diagnostics and write their plots",
	Long: "Loads the config files in order (later files override earlier ones), selects diagnostics with " +
		"[output] generate or --generate, and writes one PNG per region per diagnostic to the plots directory.",
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{annotationMode: "run"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runGenerate != "" {
			cfg.SetGenerate(strings.Split(runGenerate, ","))
		}
		cont, err := continueOnError(cmd, cfg)
		if err != nil {
			return err
		}

		env, err := newEnv(cfg, runConcurrency)
		if err != nil {
			return err
		}

		store, runID, err := startRunLog(ctx, cfg)
		if err != nil {
			return err
		}
		var rl diagnostic.RunLog
		if store != nil {
			defer store.Close() //nolint:errcheck
			rl = store
		}

		engine := diagnostic.NewEngine(diagnostic.NewRegistry(), env, rl, runID)
		summary, runErr := engine.Run(ctx, diagnostic.RunOpts{ContinueOnError: cont})

		if store != nil {
			msg := ""
			if runErr != nil {
				msg = runErr.Error()
			}
			if err := store.FinishRun(context.WithoutCancel(ctx), runID, msg); err != nil {
				zap.L().Error("failed to record run completion", zap.Error(err))
			}
		}
		if summary != nil {
			formatSummary(os.Stdout, summary)
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().StringVarP(&runGenerate, "generate", "g", "", "comma-separated analyses to generate, replacing [output] generate (ANALYSIS1[,ANALYSIS2,...])")
	runCmd.Flags().BoolVar(&runContinueOnError, "continue-on-error", false, "keep going after a diagnostic fails (default from [execute] continue_on_error)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "files read in parallel per dataset (default from the loader)")
	rootCmd.AddCommand(runCmd)
}

// continueOnError is the flag when given, else [execute] continue_on_error.
func continueOnError(cmd *cobra.Command, c *config.Config) (bool, error) {
	if cmd.Flags().Changed("continue-on-error") {
		return runContinueOnError, nil
	}
	return c.GetBool("execute", "continue_on_error")
}

// newEnv wires the netCDF reader, the loader and the plot renderer.
func newEnv(c *config.Config, concurrency int) (*diagnostic.Env, error) {
	pc, err := c.Plot()
	if err != nil {
		return nil, err
	}
	plotsDir, err := c.PlotsDir()
	if err != nil {
		return nil, err
	}
	reader := dataset.NetCDFReader{}
	return &diagnostic.Env{
		Config: c,
		Loader: dataset.NewLoader(reader, dataset.WithConcurrency(concurrency)),
		Static: reader,
		Renderer: plot.NewRenderer(plot.Options{
			Width:         vg.Length(pc.Width) * vg.Inch,
			Height:        vg.Length(pc.Height) * vg.Inch,
			TitleFontSize: pc.TitleFontSize,
			AxisFontSize:  pc.AxisFontSize,
		}),
		PlotsDir: plotsDir,
	}, nil
}

// startRunLog opens the run history and records a new run. It returns a
// nil store when [output] run_log is none.
func startRunLog(ctx context.Context, c *config.Config) (*runlog.Store, string, error) {
	path, err := c.RunLogPath()
	if err != nil || path == "" {
		return nil, "", err
	}
	store, err := runlog.Open(path)
	if err != nil {
		return nil, "", err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, "", err
	}

	caseName, _ := c.Get("case", "casename")
	generate, err := c.GetStrings("output", "generate")
	if err != nil {
		_ = store.Close()
		return nil, "", err
	}
	run, err := store.StartRun(ctx, caseName, c.Files(), generate)
	if err != nil {
		_ = store.Close()
		return nil, "", eris.Wrap(err, "run: start run log")
	}
	zap.L().Info("recording run", zap.String("run_id", run.ID), zap.String("db", path))
	return store, run.ID, nil
}

// formatSummary writes the outcome of a run to w.
func formatSummary(w io.Writer, s *diagnostic.Summary) {
	_, _ = fmt.Fprintf(w, "Diagnostics: %d selected, %d complete, %d failed\n",
		len(s.Selected), len(s.Completed), len(s.Failed))
	for _, p := range s.Plots {
		_, _ = fmt.Fprintf(w, "  plot     %s\n", p)
	}
	for _, sk := range s.Skipped {
		_, _ = fmt.Fprintf(w, "  skipped  %s\n", sk)
	}
	for _, name := range s.Selected {
		if err, ok := s.Failed[name]; ok {
			_, _ = fmt.Fprintf(w, "  failed   %s [%s]: %v\n", name, diagerr.KindOf(err), err)
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/oceanstats/mpas-diag/internal/diagerr"
	"github.com/oceanstats/mpas-diag/internal/runlog"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect analysis run history",
	Long:  "Commands for listing and viewing past analysis runs recorded in [output] run_log.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:         "list [CONFIG...]",
	Short:       "List analysis runs, most recent first",
	Annotations: map[string]string{annotationMode: "runs"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openRunLog(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:         "show <run-id> [CONFIG...]",
	Short:       "Show a run and its diagnostics",
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{annotationMode: "runs", annotationSkipArgs: "1"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openRunLog(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		entries, err := st.Entries(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*runlog.Run
				Diagnostics []runlog.Entry `json:"diagnostics"`
			}{run, entries})
		}
		formatRunDetail(os.Stdout, run, entries)
		return nil
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsShowCmd.Flags().Bool("json", false, "print the run as JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func openRunLog(ctx context.Context) (*runlog.Store, error) {
	path, err := cfg.RunLogPath()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, diagerr.Configf("runs: run history is disabled ([output] run_log = none)")
	}
	st, err := runlog.Open(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []runlog.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCASE\tSTATUS\tGENERATE\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t--------\t-------\t--------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Case,
			r.Status,
			strings.Join(r.Generate, ","),
			r.StartedAt.Format("2006-01-02 15:04"),
			duration(r.StartedAt, r.CompletedAt),
		)
	}
	_ = w.Flush()
}

// formatRunDetail writes a run and its diagnostic entries to out.
func formatRunDetail(out io.Writer, run *runlog.Run, entries []runlog.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", run.ID)
	_, _ = fmt.Fprintf(w, "Case:\t%s\n", run.Case)
	_, _ = fmt.Fprintf(w, "Config:\t%s\n", strings.Join(run.ConfigFiles, " "))
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", run.Status)
	_, _ = fmt.Fprintf(w, "Started:\t%s\n", run.StartedAt.Format(time.RFC3339))
	if run.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", run.Error)
	}
	_ = w.Flush()

	if len(entries) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DIAGNOSTIC\tSTATUS\tPLOTS\tSKIPPED\tDURATION\tERROR")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			e.Diagnostic, e.Status, len(e.Plots), len(e.Skipped),
			duration(e.StartedAt, e.CompletedAt), e.Error)
	}
	_ = w.Flush()
}

func duration(start time.Time, end *time.Time) string {
	if end == nil {
		return "-"
	}
	return end.Sub(start).Round(time.Second).String()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

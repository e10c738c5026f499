package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oceanstats/mpas-diag/internal/config"
)

// Command annotations read by the root command before any RunE.
const (
	// annotationMode names the config.Validate mode of a command.
	annotationMode = "mode"
	// annotationSkipArgs is how many leading positional args are not
	// config files.
	annotationSkipArgs = "skip-args"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "mpas-diag",
	Short: "Diagnostic time series for MPAS ocean and sea-ice runs",
	Long: "Reads MPAS model output selected through the run's stream index, computes ocean heat content, " +
		"sea-surface temperature and sea-ice area/volume time series, and plots them against a reference run and observations.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configFiles(cmd, args)...)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log()); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		cfg.LogSummary()

		if mode := cmd.Annotations[annotationMode]; mode != "" {
			if err := cfg.Validate(mode); err != nil {
				return err
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// configFiles returns the positional args that name config files.
func configFiles(cmd *cobra.Command, args []string) []string {
	skip, _ := strconv.Atoi(cmd.Annotations[annotationSkipArgs])
	if skip >= len(args) {
		return nil
	}
	return args[skip:]
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

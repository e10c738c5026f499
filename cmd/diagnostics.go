package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oceanstats/mpas-diag/internal/diagnostic"
)

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics [CONFIG...]",
	Short: "List the available diagnostics and whether [output] generate selects them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		elements, err := cfg.GetStrings("output", "generate")
		if err != nil {
			return err
		}
		formatDiagnostics(os.Stdout, diagnostic.NewRegistry(), diagnostic.ParseTokens(elements))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(diagnosticsCmd)
}

// formatDiagnostics writes a table of the registry to out.
func formatDiagnostics(out io.Writer, reg *diagnostic.Registry, tokens []diagnostic.Token) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tCORE\tCATEGORY\tSECTION\tGENERATE")
	_, _ = fmt.Fprintln(w, "----\t----\t--------\t-------\t--------")
	for _, d := range reg.All() {
		gen := "no"
		if diagnostic.ShouldGenerate(tokens, d) {
			gen = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t[%s]\t%s\n", d.Name(), d.Core(), d.Category(), d.Section(), gen)
	}
	_ = w.Flush()
}

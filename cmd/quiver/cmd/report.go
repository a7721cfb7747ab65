package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/powderline/quiver/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show spec coverage across the catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := report.NewBuilder(a.store).Build(cmd.Context())
		if err != nil {
			return err
		}

		if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
			return r.WriteYAML(cmd.OutOrStdout())
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d boards\n\n", r.Boards)

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FIELD\tRESOLVED\tCOVERAGE")
		for _, f := range r.Fields {
			fmt.Fprintf(w, "%s\t%d/%d\t%.0f%%\n", f.Field, f.Resolved, f.Total, f.Percent)
		}
		return w.Flush()
	},
}

func init() {
	reportCmd.Flags().Bool("yaml", false, "emit the full report as YAML")
	rootCmd.AddCommand(reportCmd)
}

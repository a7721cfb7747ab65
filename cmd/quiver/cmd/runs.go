package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.store.Runs(cmd.Context())
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs yet")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tSOURCES\tDURATION")
		for _, run := range runs {
			duration := "-"
			if run.CompletedAt != nil {
				duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Second).String()
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
				run.ID,
				run.StartedAt.Format(time.RFC3339),
				run.Status,
				len(run.SourcesQueried),
				duration)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

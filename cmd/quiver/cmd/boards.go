package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/powderline/quiver/pkg/catalog"
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List the catalog's boards and their resolved specs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		boards, err := a.store.Boards(cmd.Context())
		if err != nil {
			return err
		}

		if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
			data, err := yaml.Marshal(boards)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}

		if len(boards) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No boards yet")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "BOARD\tFLEX\tPROFILE\tSHAPE\tCATEGORY\tABILITY")
		for _, board := range boards {
			fmt.Fprintf(w, "%s", board.Key)
			for _, field := range catalog.SpecFields() {
				value := "-"
				if spec := board.Spec(field); spec != nil {
					value = spec.Value
				}
				fmt.Fprintf(w, "\t%s", value)
			}
			fmt.Fprintln(w)
		}
		return w.Flush()
	},
}

func init() {
	boardsCmd.Flags().Bool("yaml", false, "emit YAML instead of a table")
	rootCmd.AddCommand(boardsCmd)
}

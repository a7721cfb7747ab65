package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/powderline/quiver/pkg/catalog"
)

var purgeCmd = &cobra.Command{
	Use:   "purge <tier>",
	Short: "Delete every claim of one source tier and re-reconcile",
	Long: `Purge removes all spec claims of one trust tier (for example after
discovering a review site scrapes its data from retailers) and
re-reconciles the affected boards over the remaining claims. Fields with
no surviving claim fall back to unresolved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		affected, err := a.engine.PurgeTier(cmd.Context(), catalog.Tier(args[0]))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Purged tier %q; %d boards re-reconciled\n", args[0], len(affected))
		for _, key := range affected {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", key)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Re-reconcile every board from its stored claims",
	Long: `Reconcile re-resolves every board's fields from the retained claims,
applying the current tier precedence. Run it after changing tier_order in
the config to propagate the new precedence to the whole catalog.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.engine.ReconcileAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Re-reconciled %d boards\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/powderline/quiver/pkg/catalog"
)

var specsCmd = &cobra.Command{
	Use:   "specs <board-key>",
	Short: "Show one board's spec provenance",
	Long: `Specs shows, for each field of one board, the resolved value and
every claim that competed for it, ordered by precedence. Losing claims
are retained so a purge can fall back to them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		key := catalog.BoardKey(args[0])
		audit, err := a.engine.Audit(cmd.Context(), key)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", key)
		if len(audit) == 0 {
			fmt.Fprintln(out, "  no spec claims yet")
			return nil
		}

		for _, field := range audit {
			if field.Resolved != nil {
				fmt.Fprintf(out, "  %s: %q (%s, %s)\n",
					field.Field, field.Resolved.Value, field.Resolved.SourceID, field.Resolved.Tier)
			} else {
				fmt.Fprintf(out, "  %s: unresolved\n", field.Field)
			}
			for _, claim := range field.Claims {
				fmt.Fprintf(out, "    - %q from %s (%s) at %s\n",
					claim.Value, claim.SourceID, claim.Tier,
					claim.ObservedAt.Format(time.RFC3339))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(specsCmd)
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/powderline/quiver/internal/pipeline"
	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one catalog run",
	Long: `Run searches the configured retailers for snowboard listings,
optionally enriches them from detail pages and manufacturer spec pages,
and reconciles every claim into the catalog.

Source failures are reported and isolated; the run completes with the
sources that cooperated.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		retailers, _ := cmd.Flags().GetStringSlice("retailers")
		manufacturers, _ := cmd.Flags().GetStringSlice("manufacturers")
		sites, _ := cmd.Flags().GetStringSlice("sites")
		skipEnrichment, _ := cmd.Flags().GetBool("skip-enrichment")
		skipManufacturers, _ := cmd.Flags().GetBool("skip-manufacturers")
		extraBoardSpecs, _ := cmd.Flags().GetStringSlice("extra-board")
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		extraBoards, err := parseExtraBoards(extraBoardSpecs)
		if err != nil {
			return err
		}

		orch := pipeline.New(a.store, a.registry, a.resolver, a.engine)
		result, err := orch.Run(cmd.Context(), pipeline.Config{
			Retailers:          retailers,
			Manufacturers:      manufacturers,
			Sites:              sites,
			SkipEnrichment:     skipEnrichment,
			SkipManufacturers:  skipManufacturers,
			ExtraScrapedBoards: extraBoards,
			BatchSize:          batchSize,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run %d complete\n", result.Run.ID)
		fmt.Fprintf(out, "  sources:  %d\n", len(result.Run.SourcesQueried))
		fmt.Fprintf(out, "  listings: %d (%d dropped)\n", result.Listings, result.Dropped)
		fmt.Fprintf(out, "  boards:   %d\n", len(result.Boards))
		fmt.Fprintf(out, "  claims:   %d inserted, %d updated, %d skipped\n",
			result.Ingest.Inserted, result.Ingest.Updated, result.Ingest.Skipped)
		if len(result.Errors) > 0 {
			fmt.Fprintf(out, "  source errors:\n")
			for _, se := range result.Errors {
				fmt.Fprintf(out, "    %s: %s\n", se.SourceID, se.Message)
			}
		}
		return nil
	},
}

// parseExtraBoards turns "brand|model[|category]" flag values into raw
// records. The records still go through identity resolution downstream,
// so the text needs no canonical casing.
func parseExtraBoards(specs []string) ([]catalog.RawListing, error) {
	var raws []catalog.RawListing
	for _, spec := range specs {
		parts := strings.SplitN(spec, "|", 3)
		if len(parts) < 2 {
			return nil, errors.NewValidationError("extra-board", spec, "want brand|model[|category]")
		}
		raw := catalog.RawListing{Brand: parts[0], Model: parts[1]}
		if len(parts) == 3 {
			raw.Category = parts[2]
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

func init() {
	runCmd.Flags().StringSlice("retailers", nil, "restrict to these retailer ids")
	runCmd.Flags().StringSlice("manufacturers", nil, "restrict to these manufacturer ids")
	runCmd.Flags().StringSlice("sites", nil, "explicit source ids across both kinds")
	runCmd.Flags().Bool("skip-enrichment", false, "skip the detail-page pass")
	runCmd.Flags().Bool("skip-manufacturers", false, "skip the manufacturer spec phase")
	runCmd.Flags().StringSlice("extra-board", nil, "board to ensure exists (brand|model[|category])")
	runCmd.Flags().Int("batch-size", 0, "concurrent sources per phase")

	rootCmd.AddCommand(runCmd)
}

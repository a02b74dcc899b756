package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/absweep/absweep/internal/store"
)

func init() {
	rootCmd.AddCommand(newRecordCmd())
}

// The record command is the stand-in for the ad-platform sync: it adds metric
// deltas to a variant's cumulative counters. The engine only ever reads them.
func newRecordCmd() *cobra.Command {
	var (
		variantName string
		impressions int64
		conversions int64
	)

	cmd := &cobra.Command{
		Use:   "record <name>",
		Short: "Record metrics for a variant",
		Long: `Add impression and conversion deltas to a variant's cumulative counters.

Example:
  absweep record summer-pins --variant "Bold hook" --impressions 500 --conversions 24`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if impressions < 0 || conversions < 0 {
				return fmt.Errorf("metric deltas must not be negative")
			}
			if conversions > impressions {
				return fmt.Errorf("conversions (%d) cannot exceed impressions (%d) in one delta", conversions, impressions)
			}

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				test, err := s.GetTestByName(ctx, owner, args[0])
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("test '%s' not found", args[0])
					}
					return fmt.Errorf("failed to get test: %w", err)
				}

				variants, err := s.GetVariants(ctx, test.ID)
				if err != nil {
					return fmt.Errorf("failed to get variants: %w", err)
				}

				var target *store.Variant
				for _, v := range variants {
					if v.Name == variantName {
						target = v
						break
					}
				}
				if target == nil {
					return fmt.Errorf("variant '%s' not found in test '%s'", variantName, test.Name)
				}

				if err := s.AddVariantMetrics(ctx, target.ID, impressions, conversions); err != nil {
					return fmt.Errorf("failed to record metrics: %w", err)
				}

				fmt.Printf("Recorded %d impressions, %d conversions for '%s' in test '%s'.\n",
					impressions, conversions, target.Name, test.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variantName, "variant", "v", "", "variant name (required)")
	cmd.Flags().Int64Var(&impressions, "impressions", 0, "impression delta to add")
	cmd.Flags().Int64Var(&conversions, "conversions", 0, "conversion delta to add")
	cmd.MarkFlagRequired("variant")

	return cmd
}

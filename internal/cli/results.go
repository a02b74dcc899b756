package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/absweep/absweep/internal/stats"
	"github.com/absweep/absweep/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results <name>",
	Short: "Show detailed results for a test",
	Long:  `Show per-variant conversion rates, confidence intervals, and the current significance verdict.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
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

		fmt.Printf("TEST: %s\n", test.Name)
		fmt.Printf("STATUS: %s\n", strings.ToUpper(string(test.Status)))
		fmt.Printf("THRESHOLD: %.0f%% confidence, %d impressions per arm\n",
			test.ConfidenceThreshold*100, test.MinimumSampleSize)
		if test.ScheduledEndAt != nil {
			fmt.Printf("SCHEDULED END: %s\n", test.ScheduledEndAt.Format("2006-01-02"))
		}
		fmt.Printf("CREATED: %s\n", test.CreatedAt.Format("2006-01-02"))
		fmt.Println()

		fmt.Println("VARIANT           IMPRESSIONS  CONVERSIONS  RATE     95% CI")
		fmt.Println(strings.Repeat("─", 66))

		var control, challenger *store.Variant
		for _, v := range variants {
			if v.IsControl {
				control = v
			} else if challenger == nil {
				challenger = v
			}

			ciStr := "N/A"
			if v.Impressions > 0 {
				lower, upper := stats.WilsonInterval(v.Conversions, v.Impressions, 0.95)
				ciStr = fmt.Sprintf("[%.1f%%, %.1f%%]", lower*100, upper*100)
			}

			name := v.Name
			if v.IsControl {
				name += " *"
			}
			if len(name) > 16 {
				name = name[:13] + "..."
			}

			fmt.Printf("%-16s  %-11d  %-11d  %-7s  %s\n",
				name,
				v.Impressions,
				v.Conversions,
				formatPercent(v.Rate()),
				ciStr,
			)
		}
		fmt.Println("  * control")
		fmt.Println()

		if test.WinnerVariantID != nil {
			for _, v := range variants {
				if v.ID == *test.WinnerVariantID {
					fmt.Printf("Winner: \"%s\"", v.Name)
					if test.WinnerConfidence != nil {
						fmt.Printf(" at %.1f%% confidence", *test.WinnerConfidence*100)
					}
					fmt.Println()
					return nil
				}
			}
		}

		if control == nil || challenger == nil {
			return nil
		}

		result, err := stats.Compare(
			stats.Counts{Impressions: control.Impressions, Conversions: control.Conversions},
			stats.Counts{Impressions: challenger.Impressions, Conversions: challenger.Conversions},
			test.ConfidenceThreshold,
			test.MinimumSampleSize,
		)
		if err != nil {
			return fmt.Errorf("failed to evaluate significance: %w", err)
		}

		confPct := result.Confidence * 100
		switch {
		case result.Significant && result.Winner != stats.WinnerNone && result.SampleSizeMet:
			leading := challenger.Name
			if result.Winner == stats.WinnerControl {
				leading = control.Name
			}
			fmt.Printf("Statistical significance: %.1f%% confident \"%s\" is the winner\n", confPct, leading)
		case result.Significant:
			fmt.Printf("Statistical significance: %.1f%% confidence reached, waiting for minimum sample size\n", confPct)
		case confPct >= 90:
			fmt.Printf("Statistical significance: %.1f%% confidence (not yet significant)\n", confPct)
		default:
			fmt.Println("Statistical significance: Not enough data to determine a winner")
		}

		return nil
	})
}

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/absweep/absweep/internal/store"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var (
		control    string
		variants   string
		confidence float64
		minSample  int64
		duration   int
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new A/B test",
		Long: `Create a new A/B test in draft status with one control variant and one or
more treatment variants.

Examples:
  absweep create summer-pins --control "Current creative" --variants "Bold hook"
  absweep create hero-copy --control "A" --variants "B,C" --confidence 0.99
  absweep create cta --control "Shop now" --variants "Get yours" --duration 14`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			testName := args[0]

			treatmentList := strings.Split(variants, ",")
			for i := range treatmentList {
				treatmentList[i] = strings.TrimSpace(treatmentList[i])
			}
			if len(treatmentList) == 0 || treatmentList[0] == "" {
				return fmt.Errorf("need at least 1 treatment variant. Example: --variants \"B\"")
			}

			cfg := store.TestConfig{
				ConfidenceThreshold: confidence,
				MinimumSampleSize:   minSample,
			}
			if duration > 0 {
				end := time.Now().AddDate(0, 0, duration)
				cfg.ScheduledEndAt = &end
			}

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				test, testVariants, err := s.CreateTest(ctx, owner, testName, cfg, control, treatmentList)
				if err != nil {
					return fmt.Errorf("failed to create test: %w", err)
				}

				fmt.Printf("Created test '%s' (%s) with %d variants:\n", test.Name, test.ID, len(testVariants))
				for _, v := range testVariants {
					role := ""
					if v.IsControl {
						role = " (control)"
					}
					fmt.Printf("  %s%s\n", v.Name, role)
				}
				fmt.Printf("  Confidence threshold: %.0f%%\n", test.ConfidenceThreshold*100)
				fmt.Printf("  Minimum sample size: %d\n", test.MinimumSampleSize)
				if test.ScheduledEndAt != nil {
					fmt.Printf("  Scheduled end: %s\n", test.ScheduledEndAt.Format("2006-01-02"))
				}
				fmt.Println("\nThe test is in draft. Run 'absweep start' to begin evaluation.")

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&control, "control", "", "control variant name (required)")
	cmd.Flags().StringVarP(&variants, "variants", "v", "", "comma-separated treatment variant names (required)")
	cmd.Flags().Float64Var(&confidence, "confidence", 0.95, "confidence threshold for auto-declaring a winner")
	cmd.Flags().Int64Var(&minSample, "min-sample", 1000, "minimum impressions per arm before a winner can be declared")
	cmd.Flags().IntVar(&duration, "duration", 0, "scheduled test duration in days (0 = open-ended)")
	cmd.MarkFlagRequired("control")
	cmd.MarkFlagRequired("variants")

	return cmd
}

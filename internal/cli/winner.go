package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/absweep/absweep/internal/engine"
	"github.com/absweep/absweep/internal/stats"
	"github.com/absweep/absweep/internal/store"
)

func init() {
	rootCmd.AddCommand(newWinnerCmd())
}

func newWinnerCmd() *cobra.Command {
	var variantName string

	cmd := &cobra.Command{
		Use:   "winner <name>",
		Short: "Manually declare a winner for a running test",
		Long: `Declare a winning variant for a running A/B test and complete it.

The sweep auto-declares winners once significance and sample size are reached;
this command is the manual override. Without --variant it prompts for one.

Example:
  absweep winner summer-pins --variant "Bold hook"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				test, err := s.GetTestByName(ctx, owner, args[0])
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("test '%s' not found", args[0])
					}
					return fmt.Errorf("failed to get test: %w", err)
				}

				if test.Status != store.StatusRunning {
					return fmt.Errorf("test is not running (current status: %s)", test.Status)
				}

				variants, err := s.GetVariants(ctx, test.ID)
				if err != nil {
					return fmt.Errorf("failed to get variants: %w", err)
				}

				winner, err := pickVariant(variants, variantName)
				if err != nil {
					return err
				}

				// Snapshot the current significance so the audit entry
				// records what the numbers said at declaration time.
				var confidence, lift float64
				if control, challenger := splitArms(variants); control != nil && challenger != nil {
					result, err := stats.Compare(
						stats.Counts{Impressions: control.Impressions, Conversions: control.Conversions},
						stats.Counts{Impressions: challenger.Impressions, Conversions: challenger.Conversions},
						test.ConfidenceThreshold,
						test.MinimumSampleSize,
					)
					if err != nil {
						return fmt.Errorf("failed to evaluate significance: %w", err)
					}
					confidence = result.Confidence
					lift = result.Lift
				}

				declarator := engine.NewDeclarator(s, newLogger())
				if err := declarator.Declare(ctx, test.ID, winner.ID, confidence, lift, false); err != nil {
					return fmt.Errorf("failed to declare winner: %w", err)
				}

				fmt.Printf("Declared winner for test '%s': \"%s\"\n", test.Name, winner.Name)
				fmt.Println("Test has been marked as completed.")

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variantName, "variant", "v", "", "winning variant name (prompts if omitted)")

	return cmd
}

func pickVariant(variants []*store.Variant, name string) (*store.Variant, error) {
	if name != "" {
		for _, v := range variants {
			if v.Name == name {
				return v, nil
			}
		}
		return nil, fmt.Errorf("variant '%s' not found in this test", name)
	}

	items := make([]string, len(variants))
	for i, v := range variants {
		label := fmt.Sprintf("%s (%d/%d, %s)", v.Name, v.Conversions, v.Impressions, formatPercent(v.Rate()))
		if v.IsControl {
			label += " [control]"
		}
		items[i] = label
	}

	prompt := promptui.Select{
		Label: "Select the winning variant",
		Items: items,
	}
	index, _, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			return nil, fmt.Errorf("cancelled")
		}
		return nil, fmt.Errorf("prompt failed: %w", err)
	}

	return variants[index], nil
}

func splitArms(variants []*store.Variant) (control, challenger *store.Variant) {
	for _, v := range variants {
		if v.IsControl {
			control = v
		} else if challenger == nil {
			challenger = v
		}
	}
	return control, challenger
}

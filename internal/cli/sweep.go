package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/absweep/absweep/internal/engine"
	"github.com/absweep/absweep/internal/store"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate all running tests once",
	Long: `Run one evaluation sweep over every running test: compute significance,
auto-declare winners where the threshold and sample size are met, and close
tests past their scheduled end.

This is what an external scheduler should invoke periodically; the sweep is
idempotent and safe to re-run. The server exposes the same operation at
POST /api/sweep.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		logger := newLogger()
		defer logger.Sync()

		sweeper := engine.NewSweeper(s, engine.Config{}, logger)
		summary, err := sweeper.Run(context.Background())
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		fmt.Printf("Checked %d running test(s): %d significant, %d auto-declared, %d ended without winner.\n",
			summary.TestsChecked, summary.TestsSignificant, summary.TestsAutoDeclared, summary.TestsEnded)
		for _, msg := range summary.Errors {
			fmt.Printf("  error: %s\n", msg)
		}

		return nil
	})
}

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/absweep/absweep/internal/store"
)

func init() {
	rootCmd.AddCommand(
		newTransitionCmd("start", "Start a draft test", store.StatusDraft, store.StatusRunning),
		newTransitionCmd("pause", "Pause a running test", store.StatusRunning, store.StatusPaused),
		newTransitionCmd("resume", "Resume a paused test", store.StatusPaused, store.StatusRunning),
		newCancelCmd(),
	)
}

// newTransitionCmd builds the start/pause/resume commands; they differ only
// in which guarded transition they apply.
func newTransitionCmd(use, short string, from, to store.TestStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
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

				if err := s.TransitionStatus(ctx, test.ID, from, to); err != nil {
					if errors.Is(err, store.ErrInvalidState) {
						return fmt.Errorf("cannot %s test '%s': currently %s", use, test.Name, test.Status)
					}
					return fmt.Errorf("failed to %s test: %w", use, err)
				}

				fmt.Printf("Test '%s' is now %s.\n", test.Name, to)
				return nil
			})
		},
	}
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <name>",
		Short: "Cancel a test",
		Long:  `Cancel a test from any non-terminal status. Cancelled tests are immutable.`,
		Args:  cobra.ExactArgs(1),
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

				if test.Status.Terminal() {
					return fmt.Errorf("test '%s' is already %s", test.Name, test.Status)
				}

				if err := s.TransitionStatus(ctx, test.ID, test.Status, store.StatusCancelled); err != nil {
					return fmt.Errorf("failed to cancel test: %w", err)
				}

				fmt.Printf("Test '%s' cancelled.\n", test.Name)
				return nil
			})
		},
	}
}

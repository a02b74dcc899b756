package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/absweep/absweep/internal/stats"
	"github.com/absweep/absweep/internal/store"
)

// DefaultMaxErrors caps the error list in a sweep summary.
const DefaultMaxErrors = 10

// Config holds sweep-wide settings.
type Config struct {
	// MaxErrors caps how many per-test error messages a summary carries.
	// Zero means DefaultMaxErrors.
	MaxErrors int
}

// Summary reports what one sweep did. It is an observability surface, not a
// stable API contract.
type Summary struct {
	TestsChecked      int      `json:"tests_checked"`
	TestsSignificant  int      `json:"tests_significant"`
	TestsAutoDeclared int      `json:"tests_auto_declared"`
	TestsEnded        int      `json:"tests_ended"`
	Errors            []string `json:"errors,omitempty"`
}

// Sweeper evaluates every running test once per invocation. It is stateless
// between runs and safe to re-run: all state transitions are guarded in the
// store, so an overlapping sweep loses the race cleanly instead of
// double-declaring.
type Sweeper struct {
	store      store.Store
	aggregator *Aggregator
	declarator *Declarator
	maxErrors  int
	logger     *zap.Logger
	now        func() time.Time
}

func NewSweeper(s store.Store, cfg Config, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxErrors := cfg.MaxErrors
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	return &Sweeper{
		store:      s,
		aggregator: NewAggregator(s),
		declarator: NewDeclarator(s, logger),
		maxErrors:  maxErrors,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one sweep. A failure on one test is recorded and the sweep
// moves on; only a failure to list the running tests aborts the batch.
func (sw *Sweeper) Run(ctx context.Context) (*Summary, error) {
	tests, err := sw.store.ListRunningTests(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list running tests: %w", err)
	}

	sweepsTotal.Inc()
	summary := &Summary{}

	for _, test := range tests {
		summary.TestsChecked++
		testsCheckedTotal.Inc()

		if err := sw.evaluate(ctx, test, summary); err != nil {
			sweepErrorsTotal.Inc()
			sw.logger.Warn("test evaluation failed",
				zap.String("test_id", test.ID),
				zap.String("test", test.Name),
				zap.Error(err),
			)
			if len(summary.Errors) < sw.maxErrors {
				summary.Errors = append(summary.Errors, fmt.Sprintf("test %s: %v", test.ID, err))
			}
		}
	}

	sw.logger.Info("sweep complete",
		zap.Int("tests_checked", summary.TestsChecked),
		zap.Int("tests_significant", summary.TestsSignificant),
		zap.Int("tests_auto_declared", summary.TestsAutoDeclared),
		zap.Int("tests_ended", summary.TestsEnded),
		zap.Int("errors", len(summary.Errors)),
	)

	return summary, nil
}

// evaluate applies the decision policy to one running test. Auto-declare is
// checked before the scheduled end so a test reaching significance exactly at
// its end date still gets a winner.
func (sw *Sweeper) evaluate(ctx context.Context, test *store.Test, summary *Summary) error {
	control, treatments, err := sw.aggregator.Counts(ctx, test.ID)
	if err != nil {
		return err
	}

	// Compare control against the first treatment arm.
	challenger := treatments[0]
	result, err := stats.Compare(control.Counts, challenger.Counts, test.ConfidenceThreshold, test.MinimumSampleSize)
	if err != nil {
		return err
	}

	autoDeclare := result.Significant && result.SampleSizeMet && result.Winner != stats.WinnerNone
	if autoDeclare {
		summary.TestsSignificant++

		winnerID := challenger.Variant.ID
		if result.Winner == stats.WinnerControl {
			winnerID = control.Variant.ID
		}

		err := sw.declarator.Declare(ctx, test.ID, winnerID, result.Confidence, result.Lift, true)
		if errors.Is(err, store.ErrInvalidState) {
			// A concurrent sweep got there first. Nothing to do.
			return nil
		}
		if err != nil {
			return err
		}

		summary.TestsAutoDeclared++
		winnersDeclaredTotal.Inc()
		return nil
	}

	// Past its scheduled end without a verdict: close the test out.
	if test.ScheduledEndAt != nil && !test.ScheduledEndAt.After(sw.now()) {
		endSummary := map[string]any{
			"ended_reason":          "scheduled_end_reached",
			"significance_achieved": result.Significant,
			"final_confidence":      result.Confidence,
		}
		err := sw.store.CompleteWithoutWinner(ctx, test.ID, endSummary)
		if errors.Is(err, store.ErrInvalidState) {
			return nil
		}
		if err != nil {
			return err
		}

		entry := &store.AuditEntry{
			Owner:  test.Owner,
			Action: store.ActionTestEnded,
			TestID: test.ID,
			Details: map[string]any{
				"test_name":             test.Name,
				"reason":                "scheduled_end_reached",
				"significance_achieved": result.Significant,
			},
		}
		if err := sw.store.AppendAudit(ctx, entry); err != nil {
			return fmt.Errorf("test ended but audit entry failed: %w", err)
		}

		summary.TestsEnded++
		testsEndedTotal.Inc()
		sw.logger.Info("test ended without winner",
			zap.String("test", test.Name),
			zap.String("test_id", test.ID),
			zap.Bool("significance_achieved", result.Significant),
		)
	}

	return nil
}

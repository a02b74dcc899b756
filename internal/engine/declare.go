package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/absweep/absweep/internal/store"
)

// Declarator persists winner decisions. Both the sweep (auto) and the CLI
// (manual) go through here so the audit trail has a single shape.
type Declarator struct {
	store  store.Store
	logger *zap.Logger
}

func NewDeclarator(s store.Store, logger *zap.Logger) *Declarator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Declarator{store: s, logger: logger}
}

// Declare completes a running test with the given winning variant. The status
// update is guarded on the test still being running, so a second call for an
// already-completed test returns ErrInvalidState without writing a duplicate
// audit entry.
func (d *Declarator) Declare(ctx context.Context, testID, winnerVariantID string, confidence, lift float64, auto bool) error {
	test, err := d.store.GetTest(ctx, testID)
	if err != nil {
		return fmt.Errorf("failed to get test: %w", err)
	}
	if test.Status != store.StatusRunning {
		return fmt.Errorf("%w: test is %s, not running", store.ErrInvalidState, test.Status)
	}

	variants, err := d.store.GetVariants(ctx, testID)
	if err != nil {
		return fmt.Errorf("failed to read variants: %w", err)
	}

	var winner *store.Variant
	for _, v := range variants {
		if v.ID == winnerVariantID {
			winner = v
			break
		}
	}
	if winner == nil {
		return fmt.Errorf("variant %s does not belong to test %s: %w", winnerVariantID, testID, store.ErrNotFound)
	}

	role := "test"
	if winner.IsControl {
		role = "control"
	}

	summary := map[string]any{
		"winner":                        role,
		"winner_variant":                winner.Name,
		"final_confidence":              confidence,
		"lift":                          lift,
		"winner_declared_automatically": auto,
	}

	if err := d.store.CompleteWithWinner(ctx, testID, winnerVariantID, confidence, summary); err != nil {
		return err
	}

	entry := &store.AuditEntry{
		Owner:  test.Owner,
		Action: store.ActionWinnerDeclared,
		TestID: testID,
		Details: map[string]any{
			"test_name":      test.Name,
			"winner":         role,
			"winner_variant": winner.Name,
			"confidence":     confidence,
			"lift":           lift,
			"auto_declared":  auto,
		},
	}
	if err := d.store.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("winner recorded but audit entry failed: %w", err)
	}

	d.logger.Info("declared winner",
		zap.String("test", test.Name),
		zap.String("test_id", testID),
		zap.String("winner", winner.Name),
		zap.Float64("confidence", confidence),
		zap.Float64("lift", lift),
		zap.Bool("auto", auto),
	)

	return nil
}

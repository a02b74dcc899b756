package store

import "context"

// Store defines the interface for test storage operations
type Store interface {
	// Test operations
	CreateTest(ctx context.Context, owner, name string, cfg TestConfig, controlName string, treatmentNames []string) (*Test, []*Variant, error)
	GetTest(ctx context.Context, id string) (*Test, error)
	GetTestByName(ctx context.Context, owner, name string) (*Test, error)
	ListTests(ctx context.Context, owner string) ([]*Test, error)
	ListRunningTests(ctx context.Context) ([]*Test, error)

	// Status transitions. All are guarded by the expected current status so a
	// lost race surfaces as ErrInvalidState instead of a silent overwrite.
	TransitionStatus(ctx context.Context, id string, from, to TestStatus) error
	CompleteWithWinner(ctx context.Context, id, winnerVariantID string, confidence float64, summary map[string]any) error
	CompleteWithoutWinner(ctx context.Context, id string, summary map[string]any) error

	// Variant operations
	GetVariants(ctx context.Context, testID string) ([]*Variant, error)
	AddVariantMetrics(ctx context.Context, variantID string, impressions, conversions int64) error

	// Audit log
	AppendAudit(ctx context.Context, entry *AuditEntry) error
	ListAudit(ctx context.Context, testID string) ([]*AuditEntry, error)

	// Lifecycle
	Close() error
}

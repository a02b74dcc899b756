package store

import "time"

type TestStatus string

const (
	StatusDraft     TestStatus = "draft"
	StatusRunning   TestStatus = "running"
	StatusPaused    TestStatus = "paused"
	StatusCompleted TestStatus = "completed"
	StatusCancelled TestStatus = "cancelled"
)

// Terminal reports whether no further status transitions are allowed.
func (s TestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether moving from one status to another is a legal
// lifecycle step. Transitions are monotonic: a test never returns to draft,
// and terminal statuses never change.
func CanTransition(from, to TestStatus) bool {
	switch from {
	case StatusDraft:
		return to == StatusRunning || to == StatusCancelled
	case StatusRunning:
		return to == StatusPaused || to == StatusCompleted || to == StatusCancelled
	case StatusPaused:
		return to == StatusRunning || to == StatusCancelled
	default:
		return false
	}
}

// Audit log actions written by the engine and CLI.
const (
	ActionWinnerDeclared = "ab_test_winner_declared"
	ActionTestEnded      = "ab_test_ended"
)

// TestConfig holds the per-test evaluation settings. Fixed at creation time
// and passed explicitly into the engine, never read from ambient state.
type TestConfig struct {
	ConfidenceThreshold float64
	MinimumSampleSize   int64
	ScheduledEndAt      *time.Time
}

type Test struct {
	ID                  string
	Owner               string
	Name                string
	Status              TestStatus
	ConfidenceThreshold float64
	MinimumSampleSize   int64
	ScheduledEndAt      *time.Time
	StartedAt           *time.Time
	EndedAt             *time.Time
	WinnerVariantID     *string
	WinnerConfidence    *float64
	ResultsSummary      map[string]any // Decoded from JSON
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Variant is one arm of a test. Impressions and conversions are cumulative
// counters maintained by the external metric feed; the engine only reads them.
type Variant struct {
	ID          string
	TestID      string
	Name        string
	IsControl   bool
	Impressions int64
	Conversions int64
	CreatedAt   time.Time
}

// Rate returns the conversion rate, or 0 when there are no impressions.
func (v *Variant) Rate() float64 {
	if v.Impressions == 0 {
		return 0
	}
	return float64(v.Conversions) / float64(v.Impressions)
}

type AuditEntry struct {
	ID        int64
	Owner     string
	Action    string
	TestID    string
	Details   map[string]any // Decoded from JSON
	CreatedAt time.Time
}

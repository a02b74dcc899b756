package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
)

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS tests (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL DEFAULT 'default',
    name TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft',
    confidence_threshold REAL NOT NULL DEFAULT 0.95,
    minimum_sample_size INTEGER NOT NULL DEFAULT 1000,
    scheduled_end_at INTEGER,
    started_at INTEGER,
    ended_at INTEGER,
    winner_variant_id TEXT,
    winner_confidence REAL,
    results_summary TEXT,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch()),
    UNIQUE (owner, name)
);

CREATE INDEX IF NOT EXISTS idx_tests_status ON tests(status);
CREATE INDEX IF NOT EXISTS idx_tests_owner ON tests(owner);

CREATE TABLE IF NOT EXISTS variants (
    id TEXT PRIMARY KEY,
    test_id TEXT NOT NULL,
    name TEXT NOT NULL,
    is_control INTEGER NOT NULL DEFAULT 0,
    impressions INTEGER NOT NULL DEFAULT 0,
    conversions INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (test_id) REFERENCES tests(id)
);

CREATE INDEX IF NOT EXISTS idx_variants_test ON variants(test_id);

CREATE TABLE IF NOT EXISTS audit_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner TEXT NOT NULL,
    action TEXT NOT NULL,
    test_id TEXT NOT NULL,
    details TEXT,
    created_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_audit_test ON audit_log(test_id);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateTest(ctx context.Context, owner, name string, cfg TestConfig, controlName string, treatmentNames []string) (*Test, []*Variant, error) {
	if controlName == "" {
		return nil, nil, fmt.Errorf("control variant name is required")
	}
	if len(treatmentNames) == 0 {
		return nil, nil, fmt.Errorf("need at least one treatment variant")
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold >= 1 {
		return nil, nil, fmt.Errorf("confidence threshold must be in (0,1), got %v", cfg.ConfidenceThreshold)
	}
	if cfg.MinimumSampleSize < 0 {
		return nil, nil, fmt.Errorf("minimum sample size must not be negative, got %d", cfg.MinimumSampleSize)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	testID := uuid.NewString()
	nowTS := time.Now().Unix()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tests (id, owner, name, status, confidence_threshold, minimum_sample_size, scheduled_end_at, created_at, updated_at)
		 VALUES (?, ?, ?, 'draft', ?, ?, ?, ?, ?)`,
		testID, owner, name, cfg.ConfidenceThreshold, cfg.MinimumSampleSize, nullableTime(cfg.ScheduledEndAt), nowTS, nowTS,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert test: %w", err)
	}

	names := append([]string{controlName}, treatmentNames...)
	variants := make([]*Variant, 0, len(names))
	for i, variantName := range names {
		v := &Variant{
			ID:        uuid.NewString(),
			TestID:    testID,
			Name:      variantName,
			IsControl: i == 0,
			CreatedAt: time.Unix(nowTS, 0),
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO variants (id, test_id, name, is_control, created_at) VALUES (?, ?, ?, ?, ?)`,
			v.ID, v.TestID, v.Name, boolToInt(v.IsControl), nowTS,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to insert variant: %w", err)
		}
		variants = append(variants, v)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit: %w", err)
	}

	test := &Test{
		ID:                  testID,
		Owner:               owner,
		Name:                name,
		Status:              StatusDraft,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		MinimumSampleSize:   cfg.MinimumSampleSize,
		ScheduledEndAt:      cfg.ScheduledEndAt,
		CreatedAt:           time.Unix(nowTS, 0),
		UpdatedAt:           time.Unix(nowTS, 0),
	}

	return test, variants, nil
}

const testColumns = `id, owner, name, status, confidence_threshold, minimum_sample_size,
	scheduled_end_at, started_at, ended_at, winner_variant_id, winner_confidence,
	results_summary, created_at, updated_at`

func (s *SQLiteStore) GetTest(ctx context.Context, id string) (*Test, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+testColumns+` FROM tests WHERE id = ?`, id)
	return scanTest(row)
}

func (s *SQLiteStore) GetTestByName(ctx context.Context, owner, name string) (*Test, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+testColumns+` FROM tests WHERE owner = ? AND name = ?`, owner, name)
	return scanTest(row)
}

func (s *SQLiteStore) ListTests(ctx context.Context, owner string) ([]*Test, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+testColumns+` FROM tests WHERE owner = ? ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	defer rows.Close()
	return scanTests(rows)
}

func (s *SQLiteStore) ListRunningTests(ctx context.Context) ([]*Test, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+testColumns+` FROM tests WHERE status = 'running' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list running tests: %w", err)
	}
	defer rows.Close()
	return scanTests(rows)
}

// TransitionStatus moves a test from one status to another. The update only
// applies if the current status still matches from, so concurrent sweeps
// cannot double-apply a transition.
func (s *SQLiteStore) TransitionStatus(ctx context.Context, id string, from, to TestStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: cannot move %s to %s", ErrInvalidState, from, to)
	}

	nowTS := time.Now().Unix()

	var result sql.Result
	var err error

	switch {
	case to == StatusRunning && from == StatusDraft:
		result, err = s.db.ExecContext(ctx,
			`UPDATE tests SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(to), nowTS, nowTS, id, string(from))
	case to == StatusCancelled:
		result, err = s.db.ExecContext(ctx,
			`UPDATE tests SET status = ?, ended_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(to), nowTS, nowTS, id, string(from))
	default:
		result, err = s.db.ExecContext(ctx,
			`UPDATE tests SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(to), nowTS, id, string(from))
	}
	if err != nil {
		return fmt.Errorf("failed to update test status: %w", err)
	}

	return s.checkGuardedUpdate(ctx, result, id)
}

// CompleteWithWinner finishes a running test with a declared winner. The
// status precondition makes the call a safe no-op (ErrInvalidState) when the
// test was already completed by a concurrent sweep.
func (s *SQLiteStore) CompleteWithWinner(ctx context.Context, id, winnerVariantID string, confidence float64, summary map[string]any) error {
	summaryJSON, err := marshalSummary(summary)
	if err != nil {
		return err
	}

	nowTS := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`UPDATE tests SET status = 'completed', ended_at = ?, winner_variant_id = ?, winner_confidence = ?, results_summary = ?, updated_at = ?
		 WHERE id = ? AND status = 'running'`,
		nowTS, winnerVariantID, confidence, summaryJSON, nowTS, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete test: %w", err)
	}

	return s.checkGuardedUpdate(ctx, result, id)
}

// CompleteWithoutWinner finishes a running test without a winner, recording
// the ending reason in the results summary.
func (s *SQLiteStore) CompleteWithoutWinner(ctx context.Context, id string, summary map[string]any) error {
	summaryJSON, err := marshalSummary(summary)
	if err != nil {
		return err
	}

	nowTS := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`UPDATE tests SET status = 'completed', ended_at = ?, results_summary = ?, updated_at = ?
		 WHERE id = ? AND status = 'running'`,
		nowTS, summaryJSON, nowTS, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete test: %w", err)
	}

	return s.checkGuardedUpdate(ctx, result, id)
}

func (s *SQLiteStore) GetVariants(ctx context.Context, testID string) ([]*Variant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, test_id, name, is_control, impressions, conversions, created_at
		 FROM variants WHERE test_id = ? ORDER BY is_control DESC, created_at`,
		testID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get variants: %w", err)
	}
	defer rows.Close()

	var variants []*Variant
	for rows.Next() {
		var v Variant
		var isControl int
		var createdAt int64
		if err := rows.Scan(&v.ID, &v.TestID, &v.Name, &isControl, &v.Impressions, &v.Conversions, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		v.IsControl = isControl != 0
		v.CreatedAt = time.Unix(createdAt, 0)
		variants = append(variants, &v)
	}

	return variants, nil
}

// AddVariantMetrics adds a metric delta to a variant's cumulative counters.
// This is the write side of the external feed; the engine never calls it.
func (s *SQLiteStore) AddVariantMetrics(ctx context.Context, variantID string, impressions, conversions int64) error {
	if impressions < 0 || conversions < 0 {
		return fmt.Errorf("metric deltas must not be negative (impressions=%d, conversions=%d)", impressions, conversions)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE variants SET impressions = impressions + ?, conversions = conversions + ? WHERE id = ?`,
		impressions, conversions, variantID,
	)
	if err != nil {
		return fmt.Errorf("failed to add variant metrics: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	var detailsJSON sql.NullString
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(b), Valid: true}
	}

	nowTS := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (owner, action, test_id, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.Owner, entry.Action, entry.TestID, detailsJSON, nowTS,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = time.Unix(nowTS, 0)

	return nil
}

func (s *SQLiteStore) ListAudit(ctx context.Context, testID string) ([]*AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, action, test_id, details, created_at
		 FROM audit_log WHERE test_id = ? ORDER BY created_at DESC, id DESC`,
		testID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var detailsJSON sql.NullString
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Owner, &e.Action, &e.TestID, &detailsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if detailsJSON.Valid && detailsJSON.String != "" {
			if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, &e)
	}

	return entries, nil
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// checkGuardedUpdate classifies a zero-row guarded update: the test either
// does not exist (ErrNotFound) or is not in the expected status
// (ErrInvalidState).
func (s *SQLiteStore) checkGuardedUpdate(ctx context.Context, result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM tests WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check test status: %w", err)
	}
	return fmt.Errorf("%w: test is %s", ErrInvalidState, status)
}

func scanTest(row *sql.Row) (*Test, error) {
	test, err := scanTestRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	return test, nil
}

func scanTests(rows *sql.Rows) ([]*Test, error) {
	var tests []*Test
	for rows.Next() {
		test, err := scanTestRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan test: %w", err)
		}
		tests = append(tests, test)
	}
	return tests, rows.Err()
}

func scanTestRow(scan func(...any) error) (*Test, error) {
	var test Test
	var scheduledEndAt, startedAt, endedAt sql.NullInt64
	var winnerVariantID, summaryJSON sql.NullString
	var winnerConfidence sql.NullFloat64
	var createdAt, updatedAt int64

	err := scan(&test.ID, &test.Owner, &test.Name, &test.Status,
		&test.ConfidenceThreshold, &test.MinimumSampleSize,
		&scheduledEndAt, &startedAt, &endedAt,
		&winnerVariantID, &winnerConfidence, &summaryJSON,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	test.ScheduledEndAt = timePtr(scheduledEndAt)
	test.StartedAt = timePtr(startedAt)
	test.EndedAt = timePtr(endedAt)
	if winnerVariantID.Valid {
		test.WinnerVariantID = &winnerVariantID.String
	}
	if winnerConfidence.Valid {
		test.WinnerConfidence = &winnerConfidence.Float64
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		if err := json.Unmarshal([]byte(summaryJSON.String), &test.ResultsSummary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal results summary: %w", err)
		}
	}
	test.CreatedAt = time.Unix(createdAt, 0)
	test.UpdatedAt = time.Unix(updatedAt, 0)

	return &test, nil
}

func marshalSummary(summary map[string]any) (sql.NullString, error) {
	if summary == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(summary)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal results summary: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullableTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absweep/absweep/internal/store"
	"github.com/absweep/absweep/internal/testutil"
)

func TestDeclare_Manual(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	cfg := store.TestConfig{ConfidenceThreshold: 0.95, MinimumSampleSize: 1000}
	test, variants := newTest(t, s, "manual", cfg, true)

	d := NewDeclarator(s, nil)
	require.NoError(t, d.Declare(ctx, test.ID, variants[1].ID, 0.91, 0.2, false))

	got, err := s.GetTest(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, got.Status)
	require.NotNil(t, got.WinnerVariantID)
	assert.Equal(t, variants[1].ID, *got.WinnerVariantID)
	assert.Equal(t, "test", got.ResultsSummary["winner"])

	entries, err := s.ListAudit(ctx, test.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, store.ActionWinnerDeclared, entries[0].Action)
	assert.Equal(t, false, entries[0].Details["auto_declared"])
	assert.Equal(t, "challenger", entries[0].Details["winner_variant"])
}

func TestDeclare_AlreadyCompleted(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	cfg := store.TestConfig{ConfidenceThreshold: 0.95, MinimumSampleSize: 1000}
	test, variants := newTest(t, s, "done", cfg, true)

	d := NewDeclarator(s, nil)
	require.NoError(t, d.Declare(ctx, test.ID, variants[1].ID, 0.96, 0.3, true))

	// Second declaration is a no-op error: status, winner, and audit trail
	// are all untouched.
	err := d.Declare(ctx, test.ID, variants[0].ID, 0.99, 0.1, false)
	assert.ErrorIs(t, err, store.ErrInvalidState)

	got, err := s.GetTest(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, variants[1].ID, *got.WinnerVariantID)

	entries, err := s.ListAudit(ctx, test.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDeclare_NotRunning(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	cfg := store.TestConfig{ConfidenceThreshold: 0.95, MinimumSampleSize: 1000}
	test, variants := newTest(t, s, "still-draft", cfg, false)

	d := NewDeclarator(s, nil)
	err := d.Declare(ctx, test.ID, variants[1].ID, 0.96, 0.3, false)
	assert.ErrorIs(t, err, store.ErrInvalidState)
}

func TestDeclare_ForeignVariant(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	cfg := store.TestConfig{ConfidenceThreshold: 0.95, MinimumSampleSize: 1000}
	test, _ := newTest(t, s, "mine", cfg, true)
	_, otherVariants := newTest(t, s, "other", cfg, true)

	d := NewDeclarator(s, nil)
	err := d.Declare(ctx, test.ID, otherVariants[1].ID, 0.96, 0.3, false)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetTest(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRunning, got.Status, "test unchanged")
}

func TestDeclare_UnknownTest(t *testing.T) {
	s := testutil.SetupTestStore(t)

	d := NewDeclarator(s, nil)
	err := d.Declare(context.Background(), "missing", "variant", 0.96, 0.3, false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAggregator_Counts(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	cfg := store.TestConfig{ConfidenceThreshold: 0.95, MinimumSampleSize: 1000}
	test, variants := newTest(t, s, "agg", cfg, true)
	feed(t, s, variants[0].ID, 100, 10)
	feed(t, s, variants[1].ID, 200, 30)

	a := NewAggregator(s)
	control, treatments, err := a.Counts(ctx, test.ID)
	require.NoError(t, err)

	assert.Equal(t, variants[0].ID, control.Variant.ID)
	assert.Equal(t, int64(100), control.Counts.Impressions)
	assert.Equal(t, int64(10), control.Counts.Conversions)
	require.Len(t, treatments, 1)
	assert.Equal(t, int64(200), treatments[0].Counts.Impressions)
}

func TestAggregator_UnknownTest(t *testing.T) {
	s := testutil.SetupTestStore(t)

	a := NewAggregator(s)
	_, _, err := a.Counts(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

package stats_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/absweep/absweep/internal/stats"
)

func TestCompare_ClearWinner(t *testing.T) {
	// Control converts at 5%, treatment at 8%: a 60% lift on a large sample
	// should be clearly significant.
	result, err := stats.Compare(
		stats.Counts{Impressions: 1000, Conversions: 50},
		stats.Counts{Impressions: 1000, Conversions: 80},
		0.95, 100,
	)
	require.NoError(t, err)

	assert.Greater(t, result.Confidence, 0.95)
	assert.True(t, result.Significant)
	assert.True(t, result.SampleSizeMet)
	assert.Equal(t, stats.WinnerTest, result.Winner)
	assert.InDelta(t, 0.6, result.Lift, 1e-9)
}

func TestCompare_ControlWins(t *testing.T) {
	result, err := stats.Compare(
		stats.Counts{Impressions: 1000, Conversions: 80},
		stats.Counts{Impressions: 1000, Conversions: 50},
		0.95, 100,
	)
	require.NoError(t, err)

	assert.True(t, result.Significant)
	assert.Equal(t, stats.WinnerControl, result.Winner)
	assert.Less(t, result.Lift, 0.0)
}

func TestCompare_SmallSample(t *testing.T) {
	// 5/50 vs 6/50 is far too little data for a verdict.
	result, err := stats.Compare(
		stats.Counts{Impressions: 50, Conversions: 5},
		stats.Counts{Impressions: 50, Conversions: 6},
		0.95, 100,
	)
	require.NoError(t, err)

	assert.Less(t, result.Confidence, 0.95)
	assert.False(t, result.Significant)
	assert.False(t, result.SampleSizeMet)
	assert.Equal(t, stats.WinnerNone, result.Winner)
}

func TestCompare_EqualRates(t *testing.T) {
	// Identical rates give z = 0, so confidence is exactly Phi(0) = 0.5.
	result, err := stats.Compare(
		stats.Counts{Impressions: 1000, Conversions: 100},
		stats.Counts{Impressions: 1000, Conversions: 100},
		0.95, 100,
	)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, result.Confidence, 1e-6)
	assert.Equal(t, stats.WinnerNone, result.Winner)
	assert.False(t, result.Significant)
	assert.Zero(t, result.Lift)
}

func TestCompare_ZeroImpressions(t *testing.T) {
	cases := []struct {
		name               string
		control, treatment stats.Counts
	}{
		{"both zero", stats.Counts{}, stats.Counts{}},
		{"control zero", stats.Counts{}, stats.Counts{Impressions: 100, Conversions: 10}},
		{"treatment zero", stats.Counts{Impressions: 100, Conversions: 10}, stats.Counts{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := stats.Compare(tc.control, tc.treatment, 0.95, 100)
			require.NoError(t, err)

			assert.False(t, result.Significant)
			assert.Equal(t, stats.WinnerNone, result.Winner)
		})
	}
}

func TestCompare_ZeroStandardError(t *testing.T) {
	// Nobody converted on either arm: pooled rate 0, SE 0, no verdict.
	result, err := stats.Compare(
		stats.Counts{Impressions: 500, Conversions: 0},
		stats.Counts{Impressions: 500, Conversions: 0},
		0.95, 100,
	)
	require.NoError(t, err)

	assert.False(t, result.Significant)
	assert.Equal(t, stats.WinnerNone, result.Winner)
}

func TestCompare_InvalidCounts(t *testing.T) {
	cases := []struct {
		name               string
		control, treatment stats.Counts
	}{
		{"negative impressions", stats.Counts{Impressions: -1}, stats.Counts{Impressions: 100}},
		{"negative conversions", stats.Counts{Impressions: 100, Conversions: -5}, stats.Counts{Impressions: 100}},
		{"conversions exceed impressions", stats.Counts{Impressions: 100, Conversions: 10}, stats.Counts{Impressions: 10, Conversions: 20}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := stats.Compare(tc.control, tc.treatment, 0.95, 100)
			assert.ErrorIs(t, err, stats.ErrInvalidCounts)
		})
	}
}

func TestCompare_SampleSizeThreshold(t *testing.T) {
	// Both arms exactly at the minimum count as met.
	result, err := stats.Compare(
		stats.Counts{Impressions: 1000, Conversions: 50},
		stats.Counts{Impressions: 1000, Conversions: 80},
		0.95, 1000,
	)
	require.NoError(t, err)
	assert.True(t, result.SampleSizeMet)

	result, err = stats.Compare(
		stats.Counts{Impressions: 999, Conversions: 50},
		stats.Counts{Impressions: 1000, Conversions: 80},
		0.95, 1000,
	)
	require.NoError(t, err)
	assert.False(t, result.SampleSizeMet)
}

func TestProperty_Compare_ConfidenceBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		nControl := rapid.Int64Range(1, 1_000_000).Draw(rt, "nControl")
		nTreatment := rapid.Int64Range(1, 1_000_000).Draw(rt, "nTreatment")
		xControl := rapid.Int64Range(0, nControl).Draw(rt, "xControl")
		xTreatment := rapid.Int64Range(0, nTreatment).Draw(rt, "xTreatment")
		threshold := rapid.Float64Range(0.5, 0.999).Draw(rt, "threshold")

		result, err := stats.Compare(
			stats.Counts{Impressions: nControl, Conversions: xControl},
			stats.Counts{Impressions: nTreatment, Conversions: xTreatment},
			threshold, 100,
		)
		require.NoError(rt, err)

		assert.GreaterOrEqual(rt, result.Confidence, 0.0)
		assert.LessOrEqual(rt, result.Confidence, 1.0)
		assert.False(rt, math.IsNaN(result.Confidence))
		assert.False(rt, math.IsNaN(result.Lift))

		// A winner is only ever named at or above the threshold.
		if result.Winner != stats.WinnerNone {
			assert.True(rt, result.Significant)
			assert.GreaterOrEqual(rt, result.Confidence, threshold)
		}
	})
}

func TestProperty_Compare_EqualRatesNeverWin(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.Int64Range(1, 100_000).Draw(rt, "n")
		x := rapid.Int64Range(0, n).Draw(rt, "x")

		arm := stats.Counts{Impressions: n, Conversions: x}
		result, err := stats.Compare(arm, arm, 0.95, 100)
		require.NoError(rt, err)

		assert.Equal(rt, stats.WinnerNone, result.Winner)
		assert.False(rt, result.Significant)
	})
}

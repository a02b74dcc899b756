package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/absweep/absweep/internal/stats"
)

func TestWilsonInterval_ContainsRate(t *testing.T) {
	lower, upper := stats.WilsonInterval(100, 1000, 0.95)

	rate := 0.1
	assert.Less(t, lower, rate)
	assert.Greater(t, upper, rate)
	assert.GreaterOrEqual(t, lower, 0.0)
	assert.LessOrEqual(t, upper, 1.0)
}

func TestWilsonInterval_ZeroTrials(t *testing.T) {
	lower, upper := stats.WilsonInterval(0, 0, 0.95)
	assert.Zero(t, lower)
	assert.Zero(t, upper)
}

func TestWilsonInterval_SmallSampleIsWider(t *testing.T) {
	smallLower, smallUpper := stats.WilsonInterval(2, 20, 0.95)
	largeLower, largeUpper := stats.WilsonInterval(200, 2000, 0.95)

	assert.Greater(t, smallUpper-smallLower, largeUpper-largeLower)
}

func TestWilsonInterval_ExtremeRates(t *testing.T) {
	// All conversions: interval stays clamped to [0, 1].
	lower, upper := stats.WilsonInterval(50, 50, 0.95)
	assert.Greater(t, lower, 0.5)
	assert.LessOrEqual(t, upper, 1.0)

	// No conversions: lower bound pinned at 0.
	lower, upper = stats.WilsonInterval(0, 50, 0.95)
	assert.Zero(t, lower)
	assert.Less(t, upper, 0.2)
}

func TestWilsonInterval_HigherConfidenceIsWider(t *testing.T) {
	lower95, upper95 := stats.WilsonInterval(100, 1000, 0.95)
	lower99, upper99 := stats.WilsonInterval(100, 1000, 0.99)

	assert.Greater(t, upper99-lower99, upper95-lower95)
}

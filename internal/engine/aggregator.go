package engine

import (
	"context"
	"fmt"

	"github.com/absweep/absweep/internal/stats"
	"github.com/absweep/absweep/internal/store"
)

// VariantCounts pairs a variant with its validated counters.
type VariantCounts struct {
	Variant *store.Variant
	Counts  stats.Counts
}

// Aggregator is a read-only view over the externally maintained variant
// counters for a test. Counts are validated here so malformed feed data
// never reaches the calculator.
type Aggregator struct {
	store store.Store
}

func NewAggregator(s store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// Counts returns the control arm and the treatment arms for a test.
func (a *Aggregator) Counts(ctx context.Context, testID string) (VariantCounts, []VariantCounts, error) {
	variants, err := a.store.GetVariants(ctx, testID)
	if err != nil {
		return VariantCounts{}, nil, fmt.Errorf("failed to read variants: %w", err)
	}
	if len(variants) == 0 {
		return VariantCounts{}, nil, fmt.Errorf("test %s has no variants: %w", testID, store.ErrNotFound)
	}

	var control VariantCounts
	var haveControl bool
	var treatments []VariantCounts

	for _, v := range variants {
		c := stats.Counts{Impressions: v.Impressions, Conversions: v.Conversions}
		if err := c.Validate(); err != nil {
			return VariantCounts{}, nil, fmt.Errorf("variant %q: %w", v.Name, err)
		}

		vc := VariantCounts{Variant: v, Counts: c}
		if v.IsControl {
			if haveControl {
				return VariantCounts{}, nil, fmt.Errorf("test %s has more than one control variant", testID)
			}
			control = vc
			haveControl = true
		} else {
			treatments = append(treatments, vc)
		}
	}

	if !haveControl {
		return VariantCounts{}, nil, fmt.Errorf("test %s has no control variant: %w", testID, store.ErrNotFound)
	}
	if len(treatments) == 0 {
		return VariantCounts{}, nil, fmt.Errorf("test %s has no treatment variants: %w", testID, store.ErrNotFound)
	}

	return control, treatments, nil
}

package stats

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidCounts = errors.New("invalid counts")

// Winner indicates which arm of a comparison won, if any.
type Winner string

const (
	WinnerControl Winner = "control"
	WinnerTest    Winner = "test"
	WinnerNone    Winner = "none"
)

// Counts holds the cumulative impression and conversion totals for one arm.
type Counts struct {
	Impressions int64
	Conversions int64
}

// Rate returns the conversion rate, or 0 when there are no impressions.
func (c Counts) Rate() float64 {
	if c.Impressions == 0 {
		return 0
	}
	return float64(c.Conversions) / float64(c.Impressions)
}

// Validate rejects counter states the feed should never produce.
func (c Counts) Validate() error {
	if c.Impressions < 0 || c.Conversions < 0 {
		return fmt.Errorf("%w: negative counts (impressions=%d, conversions=%d)", ErrInvalidCounts, c.Impressions, c.Conversions)
	}
	if c.Conversions > c.Impressions {
		return fmt.Errorf("%w: conversions %d exceed impressions %d", ErrInvalidCounts, c.Conversions, c.Impressions)
	}
	return nil
}

// Result is the outcome of one significance evaluation. It is recomputed
// fresh on every pass and never mutated.
type Result struct {
	Winner        Winner
	Confidence    float64 // 0-1
	PValue        float64
	ZScore        float64
	Lift          float64 // relative change of treatment rate vs control rate
	Significant   bool
	SampleSizeMet bool
}

// Compare runs a two-proportion z-test of a treatment arm against the control
// arm: pooled rate, standard error, z-score, then confidence via the standard
// normal CDF of |z|. A winner is only named when the confidence threshold is
// reached. Pure function of its inputs.
func Compare(control, treatment Counts, threshold float64, minSampleSize int64) (Result, error) {
	if err := control.Validate(); err != nil {
		return Result{}, fmt.Errorf("control: %w", err)
	}
	if err := treatment.Validate(); err != nil {
		return Result{}, fmt.Errorf("treatment: %w", err)
	}

	sampleSizeMet := control.Impressions >= minSampleSize && treatment.Impressions >= minSampleSize

	// No data on either arm means no verdict, regardless of conversions.
	if control.Impressions == 0 || treatment.Impressions == 0 {
		return Result{
			Winner:        WinnerNone,
			PValue:        1,
			Lift:          lift(control.Rate(), treatment.Rate()),
			SampleSizeMet: sampleSizeMet,
		}, nil
	}

	pControl := control.Rate()
	pTreatment := treatment.Rate()

	pooled := float64(control.Conversions+treatment.Conversions) / float64(control.Impressions+treatment.Impressions)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(control.Impressions) + 1/float64(treatment.Impressions)))

	// SE of 0 means every visitor converted or none did; not enough variance
	// to say anything.
	if se == 0 {
		return Result{
			Winner:        WinnerNone,
			PValue:        1,
			Lift:          lift(pControl, pTreatment),
			SampleSizeMet: sampleSizeMet,
		}, nil
	}

	z := (pTreatment - pControl) / se
	confidence := normalCDF(math.Abs(z))
	significant := confidence >= threshold

	winner := WinnerNone
	if significant {
		if pTreatment > pControl {
			winner = WinnerTest
		} else if pTreatment < pControl {
			winner = WinnerControl
		}
	}

	return Result{
		Winner:        winner,
		Confidence:    confidence,
		PValue:        1 - confidence,
		ZScore:        z,
		Lift:          lift(pControl, pTreatment),
		Significant:   significant,
		SampleSizeMet: sampleSizeMet,
	}, nil
}

func lift(pControl, pTreatment float64) float64 {
	if pControl == 0 {
		return 0
	}
	return (pTreatment - pControl) / pControl
}

// normalCDF approximates the cumulative distribution function
// of the standard normal distribution
func normalCDF(x float64) float64 {
	// Use the approximation from Abramowitz and Stegun
	// Handbook of Mathematical Functions, formula 7.1.26
	a1 := 0.254829592
	a2 := -0.284496736
	a3 := 1.421413741
	a4 := -1.453152027
	a5 := 1.061405429
	p := 0.3275911

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt(2)

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}

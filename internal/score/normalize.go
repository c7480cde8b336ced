// Package score turns stored trend curves into bounded [0,1] suitability
// scores and aggregates them per country.
package score

import (
	"math"

	"github.com/rotisserie/eris"
)

// Pollutant ceilings. Predictions above these clamp to 1.
const (
	CO2Max = 444.7619
	NOMax  = 555.9525
)

// Survivable temperature band (degrees C) for the heat curve.
const (
	heatLow   = 1.0
	heatHigh  = 39.0
	heatLimit = 40.0
)

// ErrImpossibleValue is returned for negative pollutant predictions.
var ErrImpossibleValue = eris.New("score: impossible value")

// NormalizePollutant maps a predicted pollutant level onto [0,1] as
// v/ceiling, clamped at 1. Negative input is impossible.
func NormalizePollutant(v, ceiling float64) (float64, error) {
	if v < 0 || math.IsNaN(v) {
		return 0, eris.Wrapf(ErrImpossibleValue, "pollutant %g", v)
	}
	if v > ceiling {
		return 1, nil
	}
	return v / ceiling, nil
}

// NormalizeCO2 normalizes a CO2 prediction.
func NormalizeCO2(v float64) (float64, error) {
	return NormalizePollutant(v, CO2Max)
}

// NormalizeNO normalizes a nitrous oxide prediction.
func NormalizeNO(v float64) (float64, error) {
	return NormalizePollutant(v, NOMax)
}

// NormalizeHeat maps a predicted temperature onto the tolerance curve
// |ln(40/t - 1) / 5|. Temperatures below 1 or above 39 score 1.
func NormalizeHeat(t float64) float64 {
	if t < heatLow || t > heatHigh {
		return 1
	}
	return math.Abs(math.Log(heatLimit/t-1) / 5)
}

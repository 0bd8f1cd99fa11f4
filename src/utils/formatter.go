package utils

import (
	"math"
)

type Formatter struct {
}

func (m *Formatter) Round(num float64) int {
	return int(num + math.Copysign(0.5, num))
}

// ToFixed rounds to the given number of decimal places.
func (m *Formatter) ToFixed(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	return float64(m.Round(num*output)) / output
}

// ToCeil rounds up at the given number of decimal places. Used for
// quantity sizing when rounding to nearest would fall under the exchange
// minimum notional.
func (m *Formatter) ToCeil(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	return math.Ceil(num*output) / output
}

// PercentChange is the relative change from prior to current, in percent,
// rounded to one decimal place.
func (m *Formatter) PercentChange(current float64, prior float64) float64 {
	return m.ToFixed((current/prior-1)*100, 1)
}

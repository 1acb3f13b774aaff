package core

import "github.com/shopspring/decimal"

// CalculateConsumption derives the consumption of a period from two cumulative
// meter states. A set override wins and is used as is (clamped to a finite,
// non-negative number). Without both states the result is 0. A meter that
// went backwards (replacement, typo) yields 0 rather than a negative delta.
func CalculateConsumption(current, previous, override Reading) float64 {
	if v, ok := override.Get(); ok {
		return finiteNonNegative(v)
	}
	cur, ok := current.Get()
	if !ok {
		return 0
	}
	prev, ok := previous.Get()
	if !ok {
		return 0
	}
	delta := decimal.NewFromFloat(cur).Sub(decimal.NewFromFloat(prev))
	if !delta.IsPositive() {
		return 0
	}
	return delta.InexactFloat64()
}

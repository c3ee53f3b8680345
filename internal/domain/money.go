package domain

import "math"

// TicksPerDollar is the fixed-point scale used for all monetary amounts.
// Prices, cash balances, and notionals are stored as int64 "ticks"
// (dollars * 1e6) so that portfolio accounting stays exact.
const TicksPerDollar int64 = 1_000_000

// DollarsToTicks converts a float dollar amount to fixed-point ticks,
// rounding to the nearest tick.
func DollarsToTicks(d float64) int64 {
	return int64(math.Round(d * float64(TicksPerDollar)))
}

// TicksToDollars converts fixed-point ticks to a float dollar amount for
// display and indicator math. Never use the result for ledger arithmetic.
func TicksToDollars(t int64) float64 {
	return float64(t) / float64(TicksPerDollar)
}

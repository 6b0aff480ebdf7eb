package paystack

import "github.com/shopspring/decimal"

// The gateway API speaks minor currency units (KES cents). Conversion
// happens only at this boundary; the ledger and booking records store
// display units. decimal keeps 19.99 * 100 from becoming 1998.9999....

// ToMinorUnits converts a display amount to minor units, rounding to the
// nearest unit.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts gateway minor units back to a display amount.
func FromMinorUnits(minor int64) float64 {
	f, _ := decimal.NewFromInt(minor).Div(decimal.NewFromInt(100)).Float64()
	return f
}

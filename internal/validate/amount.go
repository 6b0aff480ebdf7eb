package validate

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/onpointsoft-solutions/shulegram/internal/apperr"
)

// Charge bounds in display currency units.
const (
	MinAmount = 1.0
	MaxAmount = 1_000_000.0
)

// CheckAmount enforces the charge bounds and rejects amounts the minor-unit
// conversion could not represent exactly (more than two decimal places).
func CheckAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return apperr.New(apperr.KindValidation, "amount must be a number")
	}
	if amount < MinAmount {
		return apperr.Newf(apperr.KindValidation, "amount must be at least %.0f", MinAmount)
	}
	if amount > MaxAmount {
		return apperr.Newf(apperr.KindValidation, "amount must not exceed %.0f", MaxAmount)
	}
	d := decimal.NewFromFloat(amount)
	if !d.Equal(d.Round(2)) {
		return apperr.New(apperr.KindValidation, "amount must have at most two decimal places")
	}
	return nil
}

package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// FeeSchedule describes the service fee added on top of ticket prices at
// checkout.
type FeeSchedule struct {
	Rate decimal.Decimal
}

func NewFeeSchedule(rate decimal.Decimal) (FeeSchedule, error) {
	if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
		return FeeSchedule{}, fmt.Errorf("fee rate %s out of range [0, 1)", rate)
	}
	return FeeSchedule{Rate: rate}, nil
}

// RefundAmount reverses the fee multiplier from a stored price and rounds to
// cents.
func (f FeeSchedule) RefundAmount(stored decimal.Decimal) decimal.Decimal {
	return stored.Div(one.Add(f.Rate)).Round(2)
}

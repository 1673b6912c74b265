package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Savings reports basket totals in major units.
type Savings struct {
	TotalPrice       decimal.Decimal
	PromotionalPrice decimal.Decimal
	Savings          decimal.Decimal
}

// NewSavings converts a quote into major units and computes the difference.
func NewSavings(q Quote) Savings {
	total := ToMajorUnits(q.Total)
	promo := ToMajorUnits(q.Promotional)
	return Savings{
		TotalPrice:       total,
		PromotionalPrice: promo,
		Savings:          total.Sub(promo),
	}
}

// ToMajorUnits converts pence to pounds with two fraction digits, rounding half up.
func ToMajorUnits(pence int64) decimal.Decimal {
	return decimal.NewFromInt(pence).Div(hundred).Round(2)
}

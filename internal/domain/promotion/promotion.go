// Package promotion implements the pricing rules attached to catalog products.
package promotion

import "github.com/shopspring/decimal"

// Kind enumerates the supported promotion variants.
type Kind string

const (
	// KindFlatPercent discounts the line by a fixed percentage.
	KindFlatPercent Kind = "FLAT_PERCENT"
	// KindQtyBasedPriceOverride replaces the unit price once a minimum
	// quantity is reached.
	KindQtyBasedPriceOverride Kind = "QTY_BASED_PRICE_OVERRIDE"
	// KindBuyXGetYFree makes FreeQty units free for every RequiredQty+FreeQty bought.
	KindBuyXGetYFree Kind = "BUY_X_GET_Y_FREE"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Promotion is a tagged variant: only the fields relevant to Kind are set.
// Prices are in pence.
type Promotion struct {
	ID          string
	Kind        Kind
	Amount      int   // percentage for KindFlatPercent
	RequiredQty int   // threshold for KindQtyBasedPriceOverride and KindBuyXGetYFree
	Price       int64 // override unit price for KindQtyBasedPriceOverride
	FreeQty     int   // free units per group for KindBuyXGetYFree
}

// IsApplicable reports whether the promotion applies to a line of qty units
// priced at unitPrice. No current kind depends on the unit price.
func (p Promotion) IsApplicable(qty int, unitPrice int64) bool {
	switch p.Kind {
	case KindFlatPercent:
		return true
	case KindQtyBasedPriceOverride:
		return qty >= p.RequiredQty
	case KindBuyXGetYFree:
		return p.RequiredQty > 0 && p.FreeQty > 0 && qty >= p.RequiredQty+p.FreeQty
	default:
		return false
	}
}

// FinalPrice returns the line price in pence after applying the promotion.
// A promotion that does not apply, unknown kinds included, yields the
// undiscounted price.
func (p Promotion) FinalPrice(qty int, unitPrice int64) int64 {
	if !p.IsApplicable(qty, unitPrice) {
		return unitPrice * int64(qty)
	}
	switch p.Kind {
	case KindFlatPercent:
		return flatPercent(p.Amount, qty, unitPrice)
	case KindQtyBasedPriceOverride:
		return p.Price * int64(qty)
	case KindBuyXGetYFree:
		groups := qty / (p.RequiredQty + p.FreeQty)
		return unitPrice * int64(qty-groups*p.FreeQty)
	default:
		return unitPrice * int64(qty)
	}
}

func flatPercent(amount, qty int, unitPrice int64) int64 {
	percent := decimal.NewFromInt(int64(amount)).Div(hundred).Round(2)
	line := decimal.NewFromInt(unitPrice).Mul(decimal.NewFromInt(int64(qty)))
	price := line.Mul(one.Sub(percent)).Round(0)
	if price.IsNegative() {
		return 0
	}
	return price.IntPart()
}

// Select returns the first promotion in list order that applies to a line of
// qty units at unitPrice.
func Select(promotions []Promotion, qty int, unitPrice int64) (Promotion, bool) {
	for _, p := range promotions {
		if p.IsApplicable(qty, unitPrice) {
			return p, true
		}
	}
	return Promotion{}, false
}

// Apply prices a line of qty units at unitPrice using the first applicable
// promotion, or unitPrice*qty when none applies.
func Apply(promotions []Promotion, qty int, unitPrice int64) int64 {
	if p, ok := Select(promotions, qty, unitPrice); ok {
		return p.FinalPrice(qty, unitPrice)
	}
	return unitPrice * int64(qty)
}

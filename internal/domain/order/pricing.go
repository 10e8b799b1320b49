package order

import "github.com/shopspring/decimal"

// Pricing constants. Shipping is free strictly above the threshold; an items
// subtotal of exactly 100 still pays the flat fee.
var (
	taxRate               = decimal.RequireFromString("0.10")
	freeShippingThreshold = decimal.NewFromInt(100)
	flatShippingFee       = decimal.NewFromInt(10)
)

// Quote holds the four amounts persisted on an order.
type Quote struct {
	ItemsPrice    decimal.Decimal
	TaxPrice      decimal.Decimal
	ShippingPrice decimal.Decimal
	TotalPrice    decimal.Decimal
}

// Price computes the authoritative amounts for a set of lines. The items
// subtotal accumulates in full precision and each amount is rounded once;
// the total is the sum of the rounded parts, so the stored invariant
// total = items + tax + shipping holds exactly.
func Price(lines []Line) Quote {
	items := decimal.Zero
	for _, l := range lines {
		items = items.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	items = items.Round(2)

	tax := items.Mul(taxRate).Round(2)

	shipping := flatShippingFee
	if items.GreaterThan(freeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Quote{
		ItemsPrice:    items,
		TaxPrice:      tax,
		ShippingPrice: shipping,
		TotalPrice:    items.Add(tax).Add(shipping),
	}
}

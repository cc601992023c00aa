// Package checkout prices a basket in integer minor currency units.
package checkout

import (
	"errors"

	"storefront/internal/basket"

	"github.com/shopspring/decimal"
)

var ErrEmptyBasket = errors.New("basket empty")

var hundred = decimal.NewFromInt(100)

// UnitAmount converts a decimal price into minor units, rounding half away from zero.
func UnitAmount(price decimal.Decimal) int64 {
	return price.Mul(hundred).Round(0).IntPart()
}

type QuoteLine struct {
	basket.CheckoutLine
	UnitAmount int64
}

// Quote is a priced basket ready to be sent to the payment provider.
type Quote struct {
	Lines      []QuoteLine
	ItemCount  int
	TotalCents int64
}

// Price computes a quote for lines. An empty basket is a zero quote.
func Price(lines []basket.CheckoutLine) Quote {
	q := Quote{Lines: make([]QuoteLine, 0, len(lines))}
	for _, l := range lines {
		unit := UnitAmount(l.Price)
		q.Lines = append(q.Lines, QuoteLine{CheckoutLine: l, UnitAmount: unit})
		q.ItemCount += l.Quantity
		q.TotalCents += unit * int64(l.Quantity)
	}
	return q
}

// NewQuote is Price for checkout, rejecting an empty basket.
func NewQuote(lines []basket.CheckoutLine) (Quote, error) {
	if len(lines) == 0 {
		return Quote{}, ErrEmptyBasket
	}
	return Price(lines), nil
}

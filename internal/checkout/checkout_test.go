package checkout

import (
	"testing"

	"storefront/internal/basket"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitAmount(t *testing.T) {
	tests := []struct {
		price string
		want  int64
	}{
		{price: "19.99", want: 1999},
		{price: "0.1", want: 10},
		{price: "10", want: 1000},
		{price: "1.005", want: 101},
		{price: "0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			assert.Equal(t, tt.want, UnitAmount(decimal.RequireFromString(tt.price)))
		})
	}
}

func TestNewQuote(t *testing.T) {
	_, err := NewQuote(nil)
	assert.ErrorIs(t, err, ErrEmptyBasket)

	q, err := NewQuote([]basket.CheckoutLine{
		{ProductID: 1, Name: "Tee", Price: decimal.RequireFromString("19.99"), Quantity: 3},
		{ProductID: 2, Name: "Cap", Price: decimal.RequireFromString("0.10"), Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, q.Lines, 2)
	assert.Equal(t, int64(1999), q.Lines[0].UnitAmount)
	assert.Equal(t, 4, q.ItemCount)
	assert.Equal(t, int64(3*1999+10), q.TotalCents)
}

func TestPriceEmpty(t *testing.T) {
	q := Price(nil)
	assert.Zero(t, q.TotalCents)
	assert.Zero(t, q.ItemCount)
	assert.Empty(t, q.Lines)
}

package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
}

func TestOrderResultFilled(t *testing.T) {
	qty := decimal.RequireFromString("0.002")

	assert.True(t, (&OrderResult{Status: OrderStatusFilled, FilledSize: qty}).Filled())
	// 部分成交 + 成交量为正 = 视同成交
	assert.True(t, (&OrderResult{Status: OrderStatusPartiallyFilled, FilledSize: qty}).Filled())

	// 部分成交但成交量为零不算
	assert.False(t, (&OrderResult{Status: OrderStatusPartiallyFilled}).Filled())
	assert.False(t, (&OrderResult{Status: OrderStatusOpen, FilledSize: qty}).Filled())
	assert.False(t, (&OrderResult{Status: OrderStatusRejected}).Filled())
	assert.False(t, (&OrderResult{Status: OrderStatusCanceled}).Filled())

	var nilResult *OrderResult
	assert.False(t, nilResult.Filled())
}

func TestOrderResultNotional(t *testing.T) {
	r := &OrderResult{
		FilledSize: decimal.RequireFromString("0.002"),
		AvgPrice:   decimal.RequireFromString("50000"),
	}
	assert.True(t, r.Notional().Equal(decimal.RequireFromString("100")))
}

func TestBBO(t *testing.T) {
	bbo := BBO{
		Bid: decimal.RequireFromString("99"),
		Ask: decimal.RequireFromString("101"),
	}
	assert.NoError(t, bbo.Validate())
	assert.True(t, bbo.Mid().Equal(decimal.RequireFromString("100")))

	assert.ErrorIs(t, BBO{Ask: decimal.RequireFromString("101")}.Validate(), ErrStaleOrInvalidQuote)
	assert.ErrorIs(t, BBO{Bid: decimal.RequireFromString("99"), Ask: decimal.RequireFromString("-1")}.Validate(), ErrStaleOrInvalidQuote)
}

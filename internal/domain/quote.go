package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrStaleOrInvalidQuote 盘口数据非法（任一边 <= 0）或过期
var ErrStaleOrInvalidQuote = errors.New("盘口报价非法或过期")

// BBO 最优买一/卖一
type BBO struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Mid 中间价 = (bid + ask) / 2
func (b BBO) Mid() decimal.Decimal {
	return b.Bid.Add(b.Ask).Div(two)
}

// Validate 校验两边价格均为正数
func (b BBO) Validate() error {
	if !b.Bid.IsPositive() || !b.Ask.IsPositive() {
		return ErrStaleOrInvalidQuote
	}
	return nil
}

var two = decimal.NewFromInt(2)

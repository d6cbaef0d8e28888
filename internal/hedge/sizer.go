package hedge

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SizeByMargin 按目标本金和价格计算下单数量：
//
//	quantity = floor(margin / price / lot) * lot
//
// 向下取整到最小数量单位，保证名义价值不超过 margin。
func SizeByMargin(margin, price, lot decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, errors.Errorf("价格必须为正数（当前 %s）", price.String())
	}
	if !lot.IsPositive() {
		return decimal.Zero, errors.Errorf("最小数量单位必须为正数（当前 %s）", lot.String())
	}
	qty := margin.Div(price).Div(lot).Floor().Mul(lot)
	if !qty.IsPositive() {
		return decimal.Zero, errors.Errorf("本金 %s 在价格 %s 下不足一个最小单位 %s",
			margin.String(), price.String(), lot.String())
	}
	return qty, nil
}

// NotionalDeviationPct 实际名义价值相对目标本金的偏离百分比（绝对值）
func NotionalDeviationPct(notional, margin decimal.Decimal) decimal.Decimal {
	if !margin.IsPositive() {
		return decimal.Zero
	}
	return notional.Sub(margin).Abs().Div(margin).Mul(hundred)
}

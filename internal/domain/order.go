package domain

import (
	"github.com/shopspring/decimal"
)

// Side 订单方向
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite 返回相反方向（用于回滚/平仓）
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderStatus 订单状态（各交易所状态统一映射到这组值）
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "OPEN"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
)

// OrderResult 一次下单/查单的统一结果。
// 金额字段一律用精确小数：price * quantity 直接参与绝对阈值判断，
// 不允许二进制浮点误差。
type OrderResult struct {
	Success      bool
	OrderID      string
	Side         Side
	Status       OrderStatus
	FilledSize   decimal.Decimal
	AvgPrice     decimal.Decimal
	ErrorMessage string
}

// Filled 判断该结果是否视为「已成交」。
// PARTIALLY_FILLED 且 filled_size > 0 视同成交（按部分成交量继续对冲），
// 与上游行为保持一致；如果部分成交很常见，这里是残余敞口的来源之一。
func (r *OrderResult) Filled() bool {
	if r == nil {
		return false
	}
	switch r.Status {
	case OrderStatusFilled:
		return r.FilledSize.IsPositive()
	case OrderStatusPartiallyFilled:
		return r.FilledSize.IsPositive()
	}
	return false
}

// Notional 返回成交名义价值 = FilledSize * AvgPrice
func (r *OrderResult) Notional() decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return r.FilledSize.Mul(r.AvgPrice)
}

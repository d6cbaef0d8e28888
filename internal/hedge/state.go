package hedge

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/gohedge/internal/domain"
)

// LegState 单腿持仓
type LegState struct {
	Venue      string          `json:"venue"`
	OrderID    string          `json:"order_id"`
	Side       domain.Side     `json:"side"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// Notional 持仓名义价值
func (l *LegState) Notional() decimal.Decimal {
	return l.Quantity.Mul(l.EntryPrice)
}

// PositionState 一轮对冲持仓的完整状态。
// 两腿数量来自各自的实际成交量：maker 腿部分成交时对冲腿按实际量开，
// 所以两腿数量一致，但名义价值可能略有出入。
type PositionState struct {
	Maker LegState `json:"maker"`
	Hedge LegState `json:"hedge"`

	EntryTime time.Time `json:"entry_time"`
	IsOpen    bool      `json:"is_open"`

	// EmergencyClose 止损/止盈触发后置位：平仓走双腿并发市价，
	// 不再 maker 追价。持仓时长到期不置位。
	EmergencyClose bool `json:"emergency_close"`
}

// Reset 清空状态。每轮平仓后无条件调用，无论平仓是否完全成功：
// 残余敞口通过告警暴露给人工处理，而不是让下一轮卡死。
func (p *PositionState) Reset() {
	*p = PositionState{}
}

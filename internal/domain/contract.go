package domain

import "github.com/shopspring/decimal"

// ContractAttrs 合约属性（按 ticker 从交易所查询）
type ContractAttrs struct {
	ContractID   string          // 交易所内部合约标识（GRVT: instrument 名；Lighter: market id）
	TickSize     decimal.Decimal // 最小价格变动单位
	LotIncrement decimal.Decimal // 最小数量变动单位
}

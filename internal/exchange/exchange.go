// Package exchange 定义交易所能力契约。
//
// 对冲引擎只依赖这个接口：两条腿各注入一个实现，同一套 Opener/Closer
// 状态机就能跑任意交易所组合（消灭按交易所对复制粘贴 bot 的老路）。
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/betbot/gohedge/internal/domain"
)

// Exchange 单交易所能力契约
type Exchange interface {
	// Name 交易所名（日志/告警用）
	Name() string

	// ContractAttributes 按 ticker 查询合约标识、tick size 和最小数量单位
	ContractAttributes(ctx context.Context, ticker string) (domain.ContractAttrs, error)

	// FetchBBO 获取最优买一/卖一。实现必须返回新鲜数据：
	// 定价和盈亏判断都依赖它，陈旧盘口直接导致坏成交或漏触发止损。
	FetchBBO(ctx context.Context, contractID string) (domain.BBO, error)

	// PlaceMarketOrder 市价单（taker）
	PlaceMarketOrder(ctx context.Context, contractID string, qty decimal.Decimal, side domain.Side) (*domain.OrderResult, error)

	// PlacePostOnlyOrder 只挂不吃限价单（maker）。若价格会立即成交，
	// 交易所应拒单（返回 REJECTED），而不是以 taker 成交。
	PlacePostOnlyOrder(ctx context.Context, contractID string, qty, price decimal.Decimal, side domain.Side) (*domain.OrderResult, error)

	// GetOrderStatus 查询订单状态
	GetOrderStatus(ctx context.Context, orderID string) (*domain.OrderResult, error)

	// CancelOrder 撤单（尽力而为：撤单失败只记日志，下一次查单会暴露它是否已成交）
	CancelOrder(ctx context.Context, orderID string) error

	// AccountBalance 账户可用余额（USDC）
	AccountBalance(ctx context.Context) (decimal.Decimal, error)

	// Close 断开连接、停止后台 goroutine
	Close() error
}

// SecretLookup 凭证查找函数：key -> (value, found)。
// cmd 层把「环境变量优先、secretstore 兜底」组装成一个 lookup 传进来，
// 各交易所包只管按自己的字段名取值，不碰全局环境。
type SecretLookup func(key string) (string, bool)

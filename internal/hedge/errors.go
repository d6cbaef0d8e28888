package hedge

import "github.com/pkg/errors"

// 对冲流程的哨兵错误。调用方用 errors.Is 区分失败类别，
// 告警严重级别也按这组错误划分。
var (
	// ErrOrderRejected 追价次数用尽且最后一次仍被拒单（post-only 穿越盘口等）
	ErrOrderRejected = errors.New("挂单被拒")

	// ErrFillTimeout 追价次数用尽且最后一次挂单超时未成交（已撤单）
	ErrFillTimeout = errors.New("挂单超时未成交")

	// ErrHedgeLegFailure maker 腿已成交但对冲腿下单失败，已触发回滚
	ErrHedgeLegFailure = errors.New("对冲腿下单失败")

	// ErrCompensationFailure 回滚单也失败了：账户存在单边裸敞口，
	// 需要人工介入。这是最高严重级别。
	ErrCompensationFailure = errors.New("回滚失败，存在单边敞口")

	// ErrLegImbalance 平仓后两腿不平：一腿已平另一腿失败
	ErrLegImbalance = errors.New("两腿持仓不平衡")

	// ErrInsufficientBalance 任一交易所余额低于 margin * balanceBuffer（启动预检）
	ErrInsufficientBalance = errors.New("账户余额不足")
)

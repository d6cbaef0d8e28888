package hedge

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gohedge/internal/domain"
	"github.com/betbot/gohedge/internal/exchange"
)

var log = logrus.WithField("module", "hedge")

// abandonCancelTimeout 退出时撤掉在途挂单的时限（调用方 ctx 已取消，换独立 ctx）
const abandonCancelTimeout = 5 * time.Second

// RetryPolicy 追价重试参数
type RetryPolicy struct {
	// MaxAttempts 追价次数上限；0 表示无限重试（直到 ctx 取消）
	MaxAttempts int
	// AttemptTimeout 单次挂单等待成交的时长
	AttemptTimeout time.Duration
	// PollInterval 订单状态轮询间隔
	PollInterval time.Duration
	// Pause 拒单/坏报价后的间歇
	Pause time.Duration
}

// ChaseOutcome 追价结果分类
type ChaseOutcome int

const (
	// ChaseFilled 已成交（含部分成交后撤单）
	ChaseFilled ChaseOutcome = iota
	// ChaseExhausted 重试次数用尽仍未成交
	ChaseExhausted
	// ChaseAborted ctx 取消（收到退出信号）
	ChaseAborted
)

// ChaseParams 一次 maker 追价任务
type ChaseParams struct {
	Exchange   exchange.Exchange
	ContractID string
	Side       domain.Side
	TickSize   decimal.Decimal

	// Quantity 按当前挂单价计算下单数量。开仓时每次重挂都按新价重算
	// （保证名义价值贴近目标本金）；平仓时返回固定持仓量。
	Quantity func(price decimal.Decimal) (decimal.Decimal, error)

	Policy RetryPolicy
}

// MakerChase 用 POST_ONLY 限价单贴着盘口追价，直到成交、重试用尽或 ctx 取消。
//
// 单次尝试：取新鲜盘口 → 按「买单 ask-tick / 卖单 bid+tick」定价 →
// 挂 post-only 单 → 轮询至成交或超时 → 超时撤单并复查一次状态
// （撤单和成交存在竞态，撤单失败或撤前已成交都按成交处理）。
// 被拒单（价格已穿越盘口）只说明盘口动了，间歇后按新盘口重挂。
func MakerChase(ctx context.Context, p ChaseParams) (*domain.OrderResult, ChaseOutcome, error) {
	clog := log.WithFields(logrus.Fields{
		"exchange": p.Exchange.Name(),
		"side":     p.Side,
	})

	lastRejected := false
	for attempt := 1; ; attempt++ {
		if p.Policy.MaxAttempts > 0 && attempt > p.Policy.MaxAttempts {
			clog.Warnf("⚠️ 追价 %d 次未成交，放弃", p.Policy.MaxAttempts)
			if lastRejected {
				return nil, ChaseExhausted, ErrOrderRejected
			}
			return nil, ChaseExhausted, ErrFillTimeout
		}
		if err := ctx.Err(); err != nil {
			return nil, ChaseAborted, err
		}

		bbo, err := FreshBBO(ctx, p.Exchange, p.ContractID)
		if err != nil {
			clog.Warnf("⚠️ 获取盘口失败: %v", err)
			if !pause(ctx, p.Policy.Pause) {
				return nil, ChaseAborted, ctx.Err()
			}
			continue
		}

		// maker 定价：贴着对手价差一个 tick，挂在盘口内侧最优位置。
		// 盘口不保证落在 tick 网格上，取整后再下单（买向下、卖向上，不过线）
		var price decimal.Decimal
		if p.Side == domain.SideBuy {
			price = alignToTick(bbo.Ask.Sub(p.TickSize), p.TickSize, p.Side)
		} else {
			price = alignToTick(bbo.Bid.Add(p.TickSize), p.TickSize, p.Side)
		}
		if !price.IsPositive() {
			clog.Warnf("⚠️ 计算挂单价非正数（bid=%s ask=%s），跳过本次", bbo.Bid, bbo.Ask)
			if !pause(ctx, p.Policy.Pause) {
				return nil, ChaseAborted, ctx.Err()
			}
			continue
		}

		qty, err := p.Quantity(price)
		if err != nil {
			return nil, ChaseExhausted, err
		}

		clog.Infof("📊 第 %d 次挂单: price=%s qty=%s", attempt, price, qty)
		placed, err := p.Exchange.PlacePostOnlyOrder(ctx, p.ContractID, qty, price, p.Side)
		if err != nil {
			clog.Warnf("⚠️ 挂单失败: %v", err)
			if !pause(ctx, p.Policy.Pause) {
				return nil, ChaseAborted, ctx.Err()
			}
			continue
		}
		if placed.Status == domain.OrderStatusRejected {
			lastRejected = true
			clog.Debugf("挂单被拒（盘口已移动）: %s", placed.ErrorMessage)
			if !pause(ctx, p.Policy.Pause) {
				return nil, ChaseAborted, ctx.Err()
			}
			continue
		}
		lastRejected = false
		if placed.Filled() {
			clog.Infof("✓ 挂单即时成交: qty=%s price=%s", placed.FilledSize, placed.AvgPrice)
			return placed, ChaseFilled, nil
		}

		result, filled := awaitFill(ctx, p, placed.OrderID, clog)
		if ctx.Err() != nil {
			// 退出信号打断了等待：先撤掉在途挂单再返回。
			// 残留挂单会在无人监控时成交，留下单边敞口。
			if st := cancelAbandoned(p.Exchange, placed.OrderID, clog); st.Filled() {
				clog.Infof("✓ 退出撤单前已成交: qty=%s price=%s", st.FilledSize, st.AvgPrice)
				return st, ChaseFilled, nil
			}
			return nil, ChaseAborted, ctx.Err()
		}
		if filled {
			clog.Infof("✓ 挂单成交: qty=%s price=%s", result.FilledSize, result.AvgPrice)
			return result, ChaseFilled, nil
		}
		clog.Infof("挂单超时未成交，撤单重挂")
	}
}

// awaitFill 轮询订单直到成交或超时；超时后撤单并复查一次状态。
// 返回 (最终状态, 是否视为成交)。
func awaitFill(ctx context.Context, p ChaseParams, orderID string, clog *logrus.Entry) (*domain.OrderResult, bool) {
	deadline := time.Now().Add(p.Policy.AttemptTimeout)
	for time.Now().Before(deadline) {
		if !pause(ctx, p.Policy.PollInterval) {
			return nil, false
		}
		st, err := p.Exchange.GetOrderStatus(ctx, orderID)
		if err != nil {
			clog.Warnf("⚠️ 查单失败: %v", err)
			continue
		}
		if st.Filled() {
			return st, true
		}
		if st.Status == domain.OrderStatusCanceled || st.Status == domain.OrderStatusRejected {
			return st, false
		}
	}

	// 撤单是尽力而为：撤单失败可能意味着订单刚好成交了，复查一次见分晓
	if err := p.Exchange.CancelOrder(ctx, orderID); err != nil {
		clog.Warnf("⚠️ 撤单失败: %v", err)
	}
	st, err := p.Exchange.GetOrderStatus(ctx, orderID)
	if err != nil {
		clog.Warnf("⚠️ 撤单后查单失败: %v", err)
		return nil, false
	}
	if st.Filled() {
		return st, true
	}
	return st, false
}

// cancelAbandoned 撤掉退出时还挂着的订单（尽力而为，独立超时 ctx），
// 撤完复查一次状态：撤单与成交的竞态里订单可能刚好成交了。
func cancelAbandoned(ex exchange.Exchange, orderID string, clog *logrus.Entry) *domain.OrderResult {
	ctx, cancel := context.WithTimeout(context.Background(), abandonCancelTimeout)
	defer cancel()
	if err := ex.CancelOrder(ctx, orderID); err != nil {
		clog.Warnf("⚠️ 退出撤单失败: %v", err)
	}
	st, err := ex.GetOrderStatus(ctx, orderID)
	if err != nil {
		clog.Warnf("⚠️ 退出撤单后查单失败: %v", err)
		return nil
	}
	return st
}

// alignToTick 把价格取整到 tick 网格：买单向下、卖单向上，保持 maker 侧安全
func alignToTick(price, tick decimal.Decimal, side domain.Side) decimal.Decimal {
	steps := price.Div(tick)
	if side == domain.SideBuy {
		steps = steps.Floor()
	} else {
		steps = steps.Ceil()
	}
	return steps.Mul(tick)
}

// pause 可取消的 sleep；返回 false 表示 ctx 已取消
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

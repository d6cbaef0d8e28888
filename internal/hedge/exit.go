package hedge

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/gohedge/internal/domain"
)

// ExitTrigger 平仓触发原因
type ExitTrigger string

const (
	ExitNone       ExitTrigger = ""
	ExitStopLoss   ExitTrigger = "stop_loss"
	ExitTakeProfit ExitTrigger = "take_profit"
	ExitHoldTime   ExitTrigger = "hold_time"
	ExitShutdown   ExitTrigger = "shutdown"
)

// legPnL 单腿未实现盈亏 = (现价 - 开仓价) * 数量，空头取反
func legPnL(entry, current, qty decimal.Decimal, side domain.Side) decimal.Decimal {
	diff := current.Sub(entry)
	if side == domain.SideSell {
		diff = diff.Neg()
	}
	return diff.Mul(qty)
}

// unrealizedPnL 用双边最新中间价计算两腿合计未实现盈亏（USDC 绝对值）。
// 任一边报价异常时返回错误，本 tick 跳过，绝不用坏报价触发止损。
func (e *Engine) unrealizedPnL(ctx context.Context) (decimal.Decimal, error) {
	makerBBO, err := FreshBBO(ctx, e.maker, e.makerAttrs.ContractID)
	if err != nil {
		return decimal.Zero, err
	}
	hedgeBBO, err := FreshBBO(ctx, e.hedger, e.hedgeAttrs.ContractID)
	if err != nil {
		return decimal.Zero, err
	}

	st := e.position()
	makerPnL := legPnL(st.Maker.EntryPrice, makerBBO.Mid(), st.Maker.Quantity, st.Maker.Side)
	hedgePnL := legPnL(st.Hedge.EntryPrice, hedgeBBO.Mid(), st.Hedge.Quantity, st.Hedge.Side)
	log.Debugf("双边均价 %s: maker=%s hedge=%s", CombinedMid(makerBBO, hedgeBBO), makerPnL, hedgePnL)
	return makerPnL.Add(hedgePnL), nil
}

// checkExit 按优先级判断平仓触发：止损 > 止盈 > 持仓时长。
// 阈值为 0 表示对应触发关闭。
func (e *Engine) checkExit(pnl decimal.Decimal, now time.Time) ExitTrigger {
	maxLoss := e.cfg.MaxLoss.Decimal
	maxProfit := e.cfg.MaxProfit.Decimal

	if maxLoss.IsPositive() && pnl.LessThanOrEqual(maxLoss.Neg()) {
		return ExitStopLoss
	}
	if maxProfit.IsPositive() && pnl.GreaterThanOrEqual(maxProfit) {
		return ExitTakeProfit
	}
	if now.Sub(e.position().EntryTime) >= e.cfg.HoldTime.Duration {
		return ExitHoldTime
	}
	return ExitNone
}

// monitor 持仓监控循环：每个 tick 重算盈亏并判断是否平仓。
// 止损/止盈触发置位 EmergencyClose（平仓走双腿并发市价）；
// 持仓时长到期不置位（平仓走 maker 追价省手续费）。
// ctx 取消返回 ExitShutdown。
func (e *Engine) monitor(ctx context.Context) (ExitTrigger, decimal.Decimal) {
	ticker := time.NewTicker(e.cfg.MonitorInterval.Duration)
	defer ticker.Stop()

	lastPnL := decimal.Zero
	for {
		select {
		case <-ctx.Done():
			return ExitShutdown, lastPnL
		case <-ticker.C:
		}

		pnl, err := e.unrealizedPnL(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ExitShutdown, lastPnL
			}
			log.Warnf("⚠️ 盈亏计算失败，跳过本次检查: %v", err)
			continue
		}
		lastPnL = pnl
		e.stats.SetUnrealized(pnl)
		log.Debugf("📊 持仓盈亏: %s USDC", pnl)

		trigger := e.checkExit(pnl, time.Now())
		if trigger == ExitNone {
			continue
		}

		if trigger == ExitStopLoss || trigger == ExitTakeProfit {
			e.mu.Lock()
			e.state.EmergencyClose = true
			e.mu.Unlock()
		}
		log.Infof("📊 触发平仓: %s（盈亏 %s USDC）", trigger, pnl)
		return trigger, pnl
	}
}

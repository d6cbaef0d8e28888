package hedge

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gohedge/internal/domain"
	"github.com/betbot/gohedge/internal/exchange"
)

// closeReport 平仓结果：两腿各自的成交回报（失败的腿为 nil）
type closeReport struct {
	maker *domain.OrderResult
	hedge *domain.OrderResult
}

// realizedPnL 按两腿平仓成交价计算已实现盈亏；任一腿缺成交回报时
// 退回监控期最后一次未实现盈亏
func (r *closeReport) realizedPnL(st PositionState, fallback decimal.Decimal) decimal.Decimal {
	if r.maker == nil || r.hedge == nil || !r.maker.Filled() || !r.hedge.Filled() {
		return fallback
	}
	makerPnL := legPnL(st.Maker.EntryPrice, r.maker.AvgPrice, st.Maker.Quantity, st.Maker.Side)
	hedgePnL := legPnL(st.Hedge.EntryPrice, r.hedge.AvgPrice, st.Hedge.Quantity, st.Hedge.Side)
	return makerPnL.Add(hedgePnL)
}

// closePosition 平掉当前仓位。EmergencyClose 置位时直接双腿并发市价；
// 否则 maker 腿追价平仓（省手续费），追价用尽再回退紧急市价。
// 无论结果如何最后都 Reset 状态：残余敞口靠告警暴露，不卡死主循环。
func (e *Engine) closePosition(ctx context.Context) closeReport {
	st := e.position()
	if !st.IsOpen {
		return closeReport{}
	}
	defer func() {
		e.mu.Lock()
		e.state.Reset()
		e.mu.Unlock()
	}()

	if st.EmergencyClose {
		return e.closeEmergency(ctx, st)
	}
	return e.closeNormal(ctx, st)
}

// closeNormal 正常平仓：maker 腿反向追价（固定数量），成交后对冲腿市价平掉。
// maker 腿追价次数用尽时整体回退紧急平仓。
func (e *Engine) closeNormal(ctx context.Context, st PositionState) closeReport {
	log.Infof("📊 正常平仓: maker %s qty=%s", st.Maker.Side.Opposite(), st.Maker.Quantity)

	makerResult, outcome, err := MakerChase(ctx, ChaseParams{
		Exchange:   e.maker,
		ContractID: e.makerAttrs.ContractID,
		Side:       st.Maker.Side.Opposite(),
		TickSize:   e.makerAttrs.TickSize,
		Quantity: func(decimal.Decimal) (decimal.Decimal, error) {
			// 平仓数量固定为持仓量，与价格无关
			return st.Maker.Quantity, nil
		},
		Policy: RetryPolicy{
			MaxAttempts:    e.cfg.CloseMaxAttempts,
			AttemptTimeout: e.cfg.FillTimeout.Duration,
			PollInterval:   e.cfg.PollInterval.Duration,
			Pause:          e.cfg.RetryPause.Duration,
		},
	})
	if err != nil || outcome != ChaseFilled {
		// 追价平不掉（或收到退出信号）就不再讲究费率，市价双腿强平。
		// ctx 可能已取消，紧急平仓内部用独立超时 ctx。
		if err != nil {
			log.Warnf("⚠️ maker 腿追价平仓失败: %v，回退紧急平仓", err)
		} else {
			log.Warnf("⚠️ maker 腿追价次数用尽，回退紧急平仓")
		}
		return e.closeEmergency(ctx, st)
	}

	hedgeResult := e.closeLegMarket(ctx, e.hedger, e.hedgeAttrs.ContractID, st.Hedge)
	if hedgeResult == nil {
		e.alert(ctx, fmt.Sprintf("🚨 两腿不平: maker 已平但 %s 平仓失败 %s qty=%s，需人工介入",
			st.Hedge.Venue, e.cfg.Ticker, st.Hedge.Quantity))
	}

	log.Infof("✓ 平仓完成")
	return closeReport{maker: makerResult, hedge: hedgeResult}
}

// closeEmergency 紧急平仓：两腿同时市价单，各自独立重试与告警。
// 并发是为了速度——止损触发时每一秒都在扩大亏损。
func (e *Engine) closeEmergency(ctx context.Context, st PositionState) closeReport {
	log.Warnf("⚠️ 紧急平仓: maker=%s hedge=%s", st.Maker.Quantity, st.Hedge.Quantity)

	// 收到退出信号时 ctx 可能已取消，平仓仍要完成
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), closeGraceTimeout)
		defer cancel()
	}

	type legDone struct {
		name   string
		result *domain.OrderResult
	}
	done := make(chan legDone, 2)
	go func() {
		done <- legDone{"maker", e.closeLegMarket(ctx, e.maker, e.makerAttrs.ContractID, st.Maker)}
	}()
	go func() {
		done <- legDone{"hedge", e.closeLegMarket(ctx, e.hedger, e.hedgeAttrs.ContractID, st.Hedge)}
	}()

	var report closeReport
	for i := 0; i < 2; i++ {
		d := <-done
		if d.name == "maker" {
			report.maker = d.result
		} else {
			report.hedge = d.result
		}
	}

	// 两腿独立检查：一腿失败不掩盖另一腿的结果
	if report.maker == nil {
		e.alert(ctx, fmt.Sprintf("🚨 两腿不平: %s 紧急平仓失败 %s qty=%s，需人工介入",
			st.Maker.Venue, e.cfg.Ticker, st.Maker.Quantity))
	}
	if report.hedge == nil {
		e.alert(ctx, fmt.Sprintf("🚨 两腿不平: %s 紧急平仓失败 %s qty=%s，需人工介入",
			st.Hedge.Venue, e.cfg.Ticker, st.Hedge.Quantity))
	}
	if report.maker != nil && report.hedge != nil {
		log.Infof("✓ 紧急平仓完成")
	}
	return report
}

// closeLegMarket 市价平掉一条腿，失败时有限次重试；彻底失败返回 nil
func (e *Engine) closeLegMarket(ctx context.Context, ex exchange.Exchange, contractID string, leg LegState) *domain.OrderResult {
	clog := log.WithFields(logrus.Fields{"exchange": ex.Name(), "qty": leg.Quantity.String()})
	side := leg.Side.Opposite()

	for attempt := 1; attempt <= closeLegMaxRetries; attempt++ {
		result, err := ex.PlaceMarketOrder(ctx, contractID, leg.Quantity, side)
		if err == nil && result.Filled() {
			clog.Infof("✓ 平腿成交: price=%s", result.AvgPrice)
			return result
		}
		if err != nil {
			clog.Warnf("⚠️ 平腿失败（第 %d 次）: %v", attempt, err)
		} else {
			clog.Warnf("⚠️ 平腿未成交（第 %d 次）: %s", attempt, result.ErrorMessage)
		}
		if !pause(ctx, e.cfg.RetryPause.Duration) {
			return nil
		}
	}
	return nil
}

package hedge

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/gohedge/internal/domain"
)

// openPosition 开一轮对冲仓位：
//  1. maker 腿（追价）：post-only 限价单贴盘口挂单，数量每次按新价重算
//  2. 对冲腿（taker）：maker 成交后立刻按「实际成交量」市价对冲
//  3. 对冲腿失败：在 maker 腿交易所反向市价回滚，消除单边敞口
//
// 两腿数量一律来自实际成交量，部分成交也如此——名义敞口必须两边相等。
func (e *Engine) openPosition(ctx context.Context) error {
	makerSide := domain.SideBuy
	if e.cfg.Reverse {
		makerSide = domain.SideSell
	}
	hedgeSide := makerSide.Opposite()

	log.Infof("📊 开仓: %s %s@%s / %s %s@%s margin=%s",
		makerSide, e.cfg.Ticker, e.maker.Name(),
		hedgeSide, e.cfg.Ticker, e.hedger.Name(), e.cfg.Margin)

	makerResult, outcome, err := MakerChase(ctx, ChaseParams{
		Exchange:   e.maker,
		ContractID: e.makerAttrs.ContractID,
		Side:       makerSide,
		TickSize:   e.makerAttrs.TickSize,
		Quantity: func(price decimal.Decimal) (decimal.Decimal, error) {
			return SizeByMargin(e.cfg.Margin.Decimal, price, e.makerAttrs.LotIncrement)
		},
		Policy: RetryPolicy{
			MaxAttempts:    e.cfg.OpenMaxAttempts,
			AttemptTimeout: e.cfg.FillTimeout.Duration,
			PollInterval:   e.cfg.PollInterval.Duration,
			Pause:          e.cfg.RetryPause.Duration,
		},
	})
	switch {
	case outcome == ChaseAborted:
		return ctx.Err()
	case err != nil:
		return errors.Wrap(err, "maker 腿开仓失败")
	}

	filledQty := makerResult.FilledSize
	e.warnNotionalDeviation(ctx, e.maker.Name(), makerResult.Notional())

	// 对冲腿按实际成交量市价下单。这里一旦失败就必须回滚 maker 腿，
	// 否则账户带着裸敞口过夜。
	hedgeResult, err := e.hedger.PlaceMarketOrder(ctx, e.hedgeAttrs.ContractID, filledQty, hedgeSide)
	if err != nil || !hedgeResult.Filled() {
		reason := "对冲单未成交"
		if err != nil {
			reason = err.Error()
		} else if hedgeResult.ErrorMessage != "" {
			reason = hedgeResult.ErrorMessage
		}
		log.Errorf("对冲腿下单失败: %s，开始回滚 maker 腿", reason)

		if cerr := e.compensate(ctx, e.maker, e.makerAttrs.ContractID, makerSide.Opposite(), filledQty); cerr != nil {
			return cerr
		}
		e.alert(ctx, fmt.Sprintf("⚠️ 对冲腿下单失败已回滚: %s %s qty=%s 原因: %s",
			e.cfg.Ticker, hedgeSide, filledQty, reason))
		return errors.Wrap(ErrHedgeLegFailure, reason)
	}
	e.warnNotionalDeviation(ctx, e.hedger.Name(), hedgeResult.Notional())

	// 市价单偶见吃不满：剩余敞口记告警，人工决定是否补
	if !hedgeResult.FilledSize.Equal(filledQty) {
		gap := filledQty.Sub(hedgeResult.FilledSize)
		log.Warnf("⚠️ 对冲腿部分成交: 目标=%s 实际=%s 差额=%s", filledQty, hedgeResult.FilledSize, gap)
		e.alert(ctx, fmt.Sprintf("⚠️ 两腿数量不平: %s maker=%s hedge=%s", e.cfg.Ticker, filledQty, hedgeResult.FilledSize))
	}

	e.mu.Lock()
	e.state = PositionState{
		Maker: LegState{
			Venue:      e.maker.Name(),
			OrderID:    makerResult.OrderID,
			Side:       makerSide,
			EntryPrice: makerResult.AvgPrice,
			Quantity:   filledQty,
		},
		Hedge: LegState{
			Venue:      e.hedger.Name(),
			OrderID:    hedgeResult.OrderID,
			Side:       hedgeSide,
			EntryPrice: hedgeResult.AvgPrice,
			Quantity:   hedgeResult.FilledSize,
		},
		EntryTime: time.Now(),
		IsOpen:    true,
	}
	e.mu.Unlock()

	log.Infof("✓ 开仓完成: maker %s@%s qty=%s / hedge %s@%s qty=%s",
		makerSide, makerResult.AvgPrice, filledQty,
		hedgeSide, hedgeResult.AvgPrice, hedgeResult.FilledSize)
	return nil
}

// warnNotionalDeviation 名义价值偏离目标本金超过阈值时告警（监控信号，不是错误）
func (e *Engine) warnNotionalDeviation(ctx context.Context, venue string, notional decimal.Decimal) {
	dev := NotionalDeviationPct(notional, e.cfg.Margin.Decimal)
	if dev.GreaterThan(e.cfg.NotionalDeviationPct.Decimal) {
		e.alert(ctx, fmt.Sprintf("⚠️ %s 名义价值偏离目标: notional=%s margin=%s 偏离=%s%%",
			venue, notional, e.cfg.Margin, dev.Round(2)))
	}
}

// Package hedge 跨所对冲引擎。
//
// 同一套状态机驱动任意两家交易所：maker 腿追价开仓 → 按实际成交量
// 市价对冲 → 持仓监控（绝对盈亏止损/止盈 + 持仓时长）→ 平仓 → 下一轮。
// 交易所差异全部收敛在 exchange.Exchange 接口后面。
package hedge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/gohedge/internal/domain"
	"github.com/betbot/gohedge/internal/exchange"
	"github.com/betbot/gohedge/internal/history"
	"github.com/betbot/gohedge/internal/notify"
	"github.com/betbot/gohedge/pkg/config"
	"github.com/betbot/gohedge/pkg/persistence"
)

const (
	// closeLegMaxRetries 单腿市价平仓的重试上限
	closeLegMaxRetries = 20
	// closeGraceTimeout 退出信号后留给平仓的时间
	closeGraceTimeout = 30 * time.Second
	// alertTimeout 单条告警的发送超时
	alertTimeout = 10 * time.Second
)

// Engine 对冲引擎。maker / hedger 可以是任意 exchange.Exchange 实现。
type Engine struct {
	cfg      *config.HedgeConfig
	maker    exchange.Exchange
	hedger   exchange.Exchange
	notifier notify.Notifier
	hist     *history.Store
	stats    *RunningStats

	makerAttrs domain.ContractAttrs
	hedgeAttrs domain.ContractAttrs

	mu    sync.Mutex
	state PositionState
}

// Options 引擎构造参数
type Options struct {
	Config *config.HedgeConfig
	Maker  exchange.Exchange // maker 腿交易所（post-only 追价）
	Hedger exchange.Exchange // 对冲腿交易所（市价）

	Notifier    notify.Notifier     // 可为 nil
	History     *history.Store      // 可为 nil（不落库）
	Persistence persistence.Service // 可为 nil（统计不落盘）
}

// New 创建对冲引擎
func New(opts Options) *Engine {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Noop{}
	}
	var store persistence.Store
	if opts.Persistence != nil {
		store = opts.Persistence.NewStore("hedge", opts.Config.Ticker, "stats")
	}
	return &Engine{
		cfg:      opts.Config,
		maker:    opts.Maker,
		hedger:   opts.Hedger,
		notifier: notifier,
		hist:     opts.History,
		stats:    NewRunningStats(store),
	}
}

// position 返回当前持仓状态的副本
func (e *Engine) position() PositionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// alert 发送告警（旁路，带独立超时，失败只记日志）
func (e *Engine) alert(ctx context.Context, msg string) {
	log.Warn(msg)
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	sendCtx, cancel := context.WithTimeout(ctx, alertTimeout)
	defer cancel()
	if err := e.notifier.SendText(sendCtx, msg); err != nil {
		log.Warnf("⚠️ 告警发送失败: %v", err)
	}
}

// preflight 启动预检：查合约属性、检查双边余额。
// 余额不足是致命错误（只在启动时检查一次，运行中不反复查）。
func (e *Engine) preflight(ctx context.Context) error {
	var err error
	if e.makerAttrs, err = e.maker.ContractAttributes(ctx, e.cfg.Ticker); err != nil {
		return errors.Wrapf(err, "查询 %s 合约属性失败", e.maker.Name())
	}
	if e.hedgeAttrs, err = e.hedger.ContractAttributes(ctx, e.cfg.Ticker); err != nil {
		return errors.Wrapf(err, "查询 %s 合约属性失败", e.hedger.Name())
	}
	log.Infof("✓ 合约属性: %s tick=%s lot=%s / %s tick=%s lot=%s",
		e.maker.Name(), e.makerAttrs.TickSize, e.makerAttrs.LotIncrement,
		e.hedger.Name(), e.hedgeAttrs.TickSize, e.hedgeAttrs.LotIncrement)

	required := e.cfg.Margin.Decimal.Mul(e.cfg.BalanceBuffer.Decimal)
	for _, ex := range []exchange.Exchange{e.maker, e.hedger} {
		balance, err := ex.AccountBalance(ctx)
		if err != nil {
			return errors.Wrapf(err, "查询 %s 余额失败", ex.Name())
		}
		if balance.LessThan(required) {
			return errors.Wrapf(ErrInsufficientBalance,
				"%s 余额 %s < 要求 %s（margin %s x buffer %s）",
				ex.Name(), balance, required, e.cfg.Margin, e.cfg.BalanceBuffer)
		}
		log.Infof("✓ %s 余额充足: %s USDC", ex.Name(), balance)
	}
	return nil
}

// Run 主循环：开仓 → 监控 → 平仓 → 间歇，直到 ctx 取消。
// 单轮失败不退出（下一轮重来），只有预检失败是致命的。
func (e *Engine) Run(ctx context.Context) error {
	if err := e.preflight(ctx); err != nil {
		return err
	}
	e.stats.Load()

	log.Infof("📊 对冲引擎启动: ticker=%s margin=%s holdTime=%s maxLoss=%s maxProfit=%s reverse=%v",
		e.cfg.Ticker, e.cfg.Margin, e.cfg.HoldTime.Duration,
		e.cfg.MaxLoss, e.cfg.MaxProfit, e.cfg.Reverse)

	for cycle := 1; ctx.Err() == nil; cycle++ {
		log.Infof("📊 ========== 第 %d 轮 ==========", cycle)
		e.runCycle(ctx)
		if ctx.Err() != nil {
			break
		}
		log.Infof("等待 %s 后开始下一轮", e.cfg.CycleWait.Duration)
		pause(ctx, e.cfg.CycleWait.Duration)
	}

	log.Info("✓ 对冲引擎已退出")
	return nil
}

// runCycle 跑完一轮对冲。任何阶段失败都记下来然后返回，
// 不向上抛错——主循环的职责是继续跑。
func (e *Engine) runCycle(ctx context.Context) {
	openedAt := time.Now()

	if err := e.openPosition(ctx); err != nil {
		legFailure := errors.Is(err, ErrHedgeLegFailure) || errors.Is(err, ErrCompensationFailure)
		if ctx.Err() != nil && !legFailure {
			// 退出信号打断开仓且没碰到任何腿，没什么可入账的
			return
		}
		log.Errorf("本轮开仓失败: %v", err)
		if !legFailure {
			e.alert(ctx, fmt.Sprintf("⚠️ 开仓失败: %s %v", e.cfg.Ticker, err))
		}
		e.stats.RecordFailure()
		e.recordCycle(PositionState{}, closeReport{}, "failed", err.Error(), decimal.Zero, openedAt)
		return
	}

	trigger, lastPnL := e.monitor(ctx)
	if trigger == ExitShutdown {
		// 退出信号：不再讲究费率，紧急路径尽快平掉
		e.mu.Lock()
		e.state.EmergencyClose = true
		e.mu.Unlock()
		log.Info("收到退出信号，平掉当前仓位")
	}

	st := e.position()
	report := e.closePosition(ctx)
	realized := report.realizedPnL(st, lastPnL)

	e.stats.RecordCycle(realized, trigger)
	e.recordCycle(st, report, string(trigger), "", realized, openedAt)
	log.Infof("📊 本轮结束: trigger=%s pnl=%s USDC", trigger, realized)
}

// recordCycle 写周期历史（旁路，失败只记日志）
func (e *Engine) recordCycle(st PositionState, report closeReport, exitReason, errMsg string, pnl decimal.Decimal, openedAt time.Time) {
	if e.hist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	makerExit, hedgeExit := decimal.Zero, decimal.Zero
	if report.maker != nil {
		makerExit = report.maker.AvgPrice
	}
	if report.hedge != nil {
		hedgeExit = report.hedge.AvgPrice
	}
	rec := &history.CycleRecord{
		Ticker:       e.cfg.Ticker,
		MakerVenue:   e.maker.Name(),
		HedgeVenue:   e.hedger.Name(),
		MakerSide:    string(st.Maker.Side),
		Quantity:     st.Maker.Quantity,
		MakerEntry:   st.Maker.EntryPrice,
		HedgeEntry:   st.Hedge.EntryPrice,
		MakerExit:    makerExit,
		HedgeExit:    hedgeExit,
		PnL:          pnl,
		ExitReason:   exitReason,
		Emergency:    st.EmergencyClose,
		ErrorMessage: errMsg,
		OpenedAt:     openedAt,
		ClosedAt:     time.Now(),
	}
	if err := e.hist.Insert(ctx, rec); err != nil {
		log.Warnf("⚠️ 写周期历史失败: %v", err)
	}
}

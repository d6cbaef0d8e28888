package hedge

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gohedge/internal/domain"
	"github.com/betbot/gohedge/pkg/config"
)

func TestLegPnL(t *testing.T) {
	// 多头：涨赚跌亏
	assert.True(t, legPnL(d("100"), d("105"), d("2"), domain.SideBuy).Equal(d("10")))
	assert.True(t, legPnL(d("100"), d("95"), d("2"), domain.SideBuy).Equal(d("-10")))
	// 空头：跌赚涨亏
	assert.True(t, legPnL(d("100"), d("95"), d("2"), domain.SideSell).Equal(d("10")))
	assert.True(t, legPnL(d("100"), d("105"), d("2"), domain.SideSell).Equal(d("-10")))
}

func TestUnrealizedPnL(t *testing.T) {
	maker := newMockExchange("maker")
	hedger := newMockExchange("hedger")
	// maker 中间价 105，hedge 中间价 103
	maker.fetchBBO = func() (domain.BBO, error) {
		return domain.BBO{Bid: d("104"), Ask: d("106")}, nil
	}
	hedger.fetchBBO = func() (domain.BBO, error) {
		return domain.BBO{Bid: d("102"), Ask: d("104")}, nil
	}

	e := newTestEngine(t, maker, hedger, nil)
	e.state = PositionState{
		Maker:     LegState{Side: domain.SideBuy, EntryPrice: d("100"), Quantity: d("1")},
		Hedge:     LegState{Side: domain.SideSell, EntryPrice: d("100"), Quantity: d("1")},
		EntryTime: time.Now(),
		IsOpen:    true,
	}

	pnl, err := e.unrealizedPnL(context.Background())
	require.NoError(t, err)
	// maker 多头 +5，hedge 空头 -3，合计 +2
	assert.True(t, pnl.Equal(d("2")), "got %s", pnl)
}

func TestUnrealizedPnLBadQuote(t *testing.T) {
	maker := newMockExchange("maker")
	hedger := newMockExchange("hedger")
	hedger.fetchBBO = func() (domain.BBO, error) {
		return domain.BBO{Bid: decimal.Zero, Ask: d("104")}, nil
	}

	e := newTestEngine(t, maker, hedger, nil)
	e.state = PositionState{
		Maker:  LegState{Side: domain.SideBuy, EntryPrice: d("100"), Quantity: d("1")},
		Hedge:  LegState{Side: domain.SideSell, EntryPrice: d("100"), Quantity: d("1")},
		IsOpen: true,
	}

	_, err := e.unrealizedPnL(context.Background())
	assert.ErrorIs(t, err, domain.ErrStaleOrInvalidQuote)
}

func TestCheckExitPriority(t *testing.T) {
	e := newTestEngine(t, newMockExchange("maker"), newMockExchange("hedger"), nil)
	now := time.Now()

	// 未到期、盈亏在阈值内：不触发
	e.state.EntryTime = now.Add(-time.Minute)
	assert.Equal(t, ExitNone, e.checkExit(d("-9.99"), now))
	assert.Equal(t, ExitNone, e.checkExit(d("19.99"), now))

	// 止损阈值是含边界的
	assert.Equal(t, ExitStopLoss, e.checkExit(d("-10"), now))
	assert.Equal(t, ExitTakeProfit, e.checkExit(d("20"), now))

	// 持仓到期
	e.state.EntryTime = now.Add(-10 * time.Minute)
	assert.Equal(t, ExitHoldTime, e.checkExit(d("0"), now))

	// 到期时止损/止盈优先于持仓时长
	assert.Equal(t, ExitStopLoss, e.checkExit(d("-15"), now))
	assert.Equal(t, ExitTakeProfit, e.checkExit(d("25"), now))
}

func TestCheckExitDisabledThresholds(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxLoss = config.D("0")
	cfg.MaxProfit = config.D("0")
	e := newTestEngine(t, newMockExchange("maker"), newMockExchange("hedger"), cfg)
	now := time.Now()
	e.state.EntryTime = now.Add(-time.Minute)

	// 阈值为 0 表示关闭：再大的亏损也不触发止损
	assert.Equal(t, ExitNone, e.checkExit(d("-100000"), now))
	assert.Equal(t, ExitNone, e.checkExit(d("100000"), now))
}

func TestMonitorStopLossSetsEmergency(t *testing.T) {
	maker := newMockExchange("maker")
	hedger := newMockExchange("hedger")
	// maker 腿中间价跌到 45000（多头亏 10），hedge 腿持平
	maker.fetchBBO = func() (domain.BBO, error) {
		return domain.BBO{Bid: d("44999"), Ask: d("45001")}, nil
	}
	hedger.fetchBBO = func() (domain.BBO, error) {
		return domain.BBO{Bid: d("49999"), Ask: d("50001")}, nil
	}

	e := newTestEngine(t, maker, hedger, nil)
	e.state = PositionState{
		Maker:     LegState{Side: domain.SideBuy, EntryPrice: d("50000"), Quantity: d("0.002")},
		Hedge:     LegState{Side: domain.SideSell, EntryPrice: d("50000"), Quantity: d("0.002")},
		EntryTime: time.Now(),
		IsOpen:    true,
	}

	trigger, pnl := e.monitor(context.Background())
	assert.Equal(t, ExitStopLoss, trigger)
	assert.True(t, pnl.Equal(d("-10")), "got %s", pnl)
	assert.True(t, e.position().EmergencyClose, "止损触发必须置位紧急平仓")
}

func TestMonitorHoldTimeNoEmergency(t *testing.T) {
	e := newTestEngine(t, newMockExchange("maker"), newMockExchange("hedger"), nil)
	e.state = PositionState{
		Maker:     LegState{Side: domain.SideBuy, EntryPrice: d("50000"), Quantity: d("0.002")},
		Hedge:     LegState{Side: domain.SideSell, EntryPrice: d("50000"), Quantity: d("0.002")},
		EntryTime: time.Now().Add(-time.Hour), // 已到期
		IsOpen:    true,
	}

	trigger, _ := e.monitor(context.Background())
	assert.Equal(t, ExitHoldTime, trigger)
	assert.False(t, e.position().EmergencyClose, "持仓到期不走紧急平仓")
}

func TestMonitorShutdown(t *testing.T) {
	e := newTestEngine(t, newMockExchange("maker"), newMockExchange("hedger"), nil)
	e.state = PositionState{
		Maker:     LegState{Side: domain.SideBuy, EntryPrice: d("50000"), Quantity: d("0.002")},
		Hedge:     LegState{Side: domain.SideSell, EntryPrice: d("50000"), Quantity: d("0.002")},
		EntryTime: time.Now(),
		IsOpen:    true,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	trigger, _ := e.monitor(ctx)
	assert.Equal(t, ExitShutdown, trigger)
}

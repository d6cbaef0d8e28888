package hedge

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gohedge/internal/domain"
)

func chaseParams(ex *mockExchange, side domain.Side, maxAttempts int) ChaseParams {
	return ChaseParams{
		Exchange:   ex,
		ContractID: ex.attrs.ContractID,
		Side:       side,
		TickSize:   ex.attrs.TickSize,
		Quantity: func(price decimal.Decimal) (decimal.Decimal, error) {
			return SizeByMargin(d("100"), price, ex.attrs.LotIncrement)
		},
		Policy: RetryPolicy{
			MaxAttempts:    maxAttempts,
			AttemptTimeout: 50 * time.Millisecond,
			PollInterval:   5 * time.Millisecond,
			Pause:          time.Millisecond,
		},
	}
}

func TestMakerChaseImmediateFill(t *testing.T) {
	ex := newMockExchange("maker")

	result, outcome, err := MakerChase(context.Background(), chaseParams(ex, domain.SideBuy, 3))
	require.NoError(t, err)
	assert.Equal(t, ChaseFilled, outcome)
	assert.True(t, result.Filled())

	// 买单挂在 ask - tick
	require.Equal(t, 1, ex.postOnlyCallCount())
	call := ex.postOnlyCalls[0]
	assert.True(t, call.price.Equal(d("50000")), "ask 50000.1 - tick 0.1, got %s", call.price)
	assert.True(t, call.qty.Equal(d("0.002")))
}

func TestMakerChaseSellPricing(t *testing.T) {
	ex := newMockExchange("maker")

	_, outcome, err := MakerChase(context.Background(), chaseParams(ex, domain.SideSell, 3))
	require.NoError(t, err)
	assert.Equal(t, ChaseFilled, outcome)

	// 卖单挂在 bid + tick
	call := ex.postOnlyCalls[0]
	assert.True(t, call.price.Equal(d("50000")), "bid 49999.9 + tick 0.1, got %s", call.price)
}

func TestMakerChaseRejectThenFill(t *testing.T) {
	ex := newMockExchange("maker")
	var attempts atomic.Int32
	ex.placePostOnly = func(qty, price decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
		if attempts.Add(1) == 1 {
			return rejected(side, "post-only would cross"), nil
		}
		return filled("po-2", side, qty.String(), price.String()), nil
	}

	result, outcome, err := MakerChase(context.Background(), chaseParams(ex, domain.SideBuy, 3))
	require.NoError(t, err)
	assert.Equal(t, ChaseFilled, outcome)
	assert.Equal(t, "po-2", result.OrderID)
	assert.Equal(t, 2, ex.postOnlyCallCount(), "拒单后应按新盘口重挂")
}

func TestMakerChaseExhausted(t *testing.T) {
	ex := newMockExchange("maker")
	ex.placePostOnly = func(_, _ decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
		return rejected(side, "post-only would cross"), nil
	}

	result, outcome, err := MakerChase(context.Background(), chaseParams(ex, domain.SideBuy, 3))
	assert.Equal(t, ChaseExhausted, outcome)
	assert.ErrorIs(t, err, ErrOrderRejected)
	assert.Nil(t, result)
	assert.Equal(t, 3, ex.postOnlyCallCount())
}

func TestMakerChaseExhaustedByTimeout(t *testing.T) {
	ex := newMockExchange("maker")
	ex.placePostOnly = func(qty, price decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
		return &domain.OrderResult{Success: true, OrderID: "po-stuck", Side: side, Status: domain.OrderStatusOpen}, nil
	}
	ex.getStatus = func(orderID string) (*domain.OrderResult, error) {
		return &domain.OrderResult{OrderID: orderID, Status: domain.OrderStatusOpen, Success: true}, nil
	}

	_, outcome, err := MakerChase(context.Background(), chaseParams(ex, domain.SideBuy, 2))
	assert.Equal(t, ChaseExhausted, outcome)
	assert.ErrorIs(t, err, ErrFillTimeout)
}

func TestMakerChaseTimeoutCancelsAndRechases(t *testing.T) {
	ex := newMockExchange("maker")
	var attempts atomic.Int32
	ex.placePostOnly = func(qty, price decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
		n := attempts.Add(1)
		if n == 1 {
			// 第一单挂出后一直不成交
			return &domain.OrderResult{Success: true, OrderID: "po-stale", Side: side, Status: domain.OrderStatusOpen}, nil
		}
		return filled("po-fresh", side, qty.String(), price.String()), nil
	}
	ex.getStatus = func(orderID string) (*domain.OrderResult, error) {
		return &domain.OrderResult{OrderID: orderID, Status: domain.OrderStatusOpen, Success: true}, nil
	}

	result, outcome, err := MakerChase(context.Background(), chaseParams(ex, domain.SideBuy, 5))
	require.NoError(t, err)
	assert.Equal(t, ChaseFilled, outcome)
	assert.Equal(t, "po-fresh", result.OrderID)

	ex.mu.Lock()
	cancels := len(ex.cancels)
	ex.mu.Unlock()
	assert.Equal(t, 1, cancels, "超时后必须撤掉旧单")
}

func TestMakerChaseCancelRace(t *testing.T) {
	// 撤单与成交竞态：撤单后复查发现已成交，按成交处理
	ex := newMockExchange("maker")
	ex.placePostOnly = func(qty, price decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
		return &domain.OrderResult{Success: true, OrderID: "po-race", Side: side, Status: domain.OrderStatusOpen}, nil
	}
	var canceled atomic.Bool
	ex.cancelFn = func(string) error {
		canceled.Store(true)
		return nil
	}
	ex.getStatus = func(orderID string) (*domain.OrderResult, error) {
		if canceled.Load() {
			return filled(orderID, domain.SideBuy, "0.002", "50000"), nil
		}
		return &domain.OrderResult{OrderID: orderID, Status: domain.OrderStatusOpen, Success: true}, nil
	}

	result, outcome, err := MakerChase(context.Background(), chaseParams(ex, domain.SideBuy, 2))
	require.NoError(t, err)
	assert.Equal(t, ChaseFilled, outcome)
	assert.True(t, result.FilledSize.Equal(d("0.002")))
}

func TestMakerChaseTickAlignment(t *testing.T) {
	// 盘口不在 tick 网格上时，挂单价必须取整到网格（买向下、卖向上）
	badBBO := func() (domain.BBO, error) {
		return domain.BBO{Bid: d("49999.86"), Ask: d("50000.17")}, nil
	}

	buyEx := newMockExchange("maker")
	buyEx.fetchBBO = badBBO
	_, _, err := MakerChase(context.Background(), chaseParams(buyEx, domain.SideBuy, 1))
	require.NoError(t, err)
	// ask 50000.17 - 0.1 = 50000.07 → 50000.0
	assert.True(t, buyEx.postOnlyCalls[0].price.Equal(d("50000")), "got %s", buyEx.postOnlyCalls[0].price)

	sellEx := newMockExchange("maker")
	sellEx.fetchBBO = badBBO
	_, _, err = MakerChase(context.Background(), chaseParams(sellEx, domain.SideSell, 1))
	require.NoError(t, err)
	// bid 49999.86 + 0.1 = 49999.96 → 50000.0
	assert.True(t, sellEx.postOnlyCalls[0].price.Equal(d("50000")), "got %s", sellEx.postOnlyCalls[0].price)
}

func TestMakerChaseAbortCancelsRestingOrder(t *testing.T) {
	// 退出信号打断轮询时，在途挂单必须撤掉，不能留在交易所无人监控
	ex := newMockExchange("maker")
	ctx, cancel := context.WithCancel(context.Background())
	ex.placePostOnly = func(qty, price decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
		return &domain.OrderResult{Success: true, OrderID: "po-live", Side: side, Status: domain.OrderStatusOpen}, nil
	}
	var polls atomic.Int32
	ex.getStatus = func(orderID string) (*domain.OrderResult, error) {
		if polls.Add(1) == 1 {
			cancel()
		}
		return &domain.OrderResult{OrderID: orderID, Status: domain.OrderStatusOpen, Success: true}, nil
	}

	_, outcome, err := MakerChase(ctx, chaseParams(ex, domain.SideBuy, 0))
	assert.Equal(t, ChaseAborted, outcome)
	assert.ErrorIs(t, err, context.Canceled)

	ex.mu.Lock()
	cancels := len(ex.cancels)
	ex.mu.Unlock()
	assert.Equal(t, 1, cancels, "退出时必须撤掉在途挂单")
}

func TestMakerChaseAbortFillRace(t *testing.T) {
	// 退出撤单与成交竞态：撤单后复查发现已成交，按成交返回而不是丢掉
	ex := newMockExchange("maker")
	ctx, cancel := context.WithCancel(context.Background())
	ex.placePostOnly = func(qty, price decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
		return &domain.OrderResult{Success: true, OrderID: "po-race2", Side: side, Status: domain.OrderStatusOpen}, nil
	}
	var canceled atomic.Bool
	ex.cancelFn = func(string) error {
		canceled.Store(true)
		return nil
	}
	ex.getStatus = func(orderID string) (*domain.OrderResult, error) {
		if canceled.Load() {
			return filled(orderID, domain.SideBuy, "0.002", "50000"), nil
		}
		cancel()
		return &domain.OrderResult{OrderID: orderID, Status: domain.OrderStatusOpen, Success: true}, nil
	}

	result, outcome, err := MakerChase(ctx, chaseParams(ex, domain.SideBuy, 0))
	require.NoError(t, err)
	assert.Equal(t, ChaseFilled, outcome)
	assert.True(t, result.FilledSize.Equal(d("0.002")))
}

func TestMakerChaseAborted(t *testing.T) {
	ex := newMockExchange("maker")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, outcome, err := MakerChase(ctx, chaseParams(ex, domain.SideBuy, 0))
	assert.Equal(t, ChaseAborted, outcome)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMakerChaseBadQuoteRetries(t *testing.T) {
	ex := newMockExchange("maker")
	var calls atomic.Int32
	ex.fetchBBO = func() (domain.BBO, error) {
		if calls.Add(1) == 1 {
			return domain.BBO{Bid: decimal.Zero, Ask: d("50000.1")}, nil
		}
		return domain.BBO{Bid: d("49999.9"), Ask: d("50000.1")}, nil
	}

	_, outcome, err := MakerChase(context.Background(), chaseParams(ex, domain.SideBuy, 3))
	require.NoError(t, err)
	assert.Equal(t, ChaseFilled, outcome)
	assert.GreaterOrEqual(t, calls.Load(), int32(2), "坏报价必须重取")
}

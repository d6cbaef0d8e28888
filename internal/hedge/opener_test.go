package hedge

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gohedge/internal/domain"
)

func TestOpenPosition(t *testing.T) {
	maker := newMockExchange("maker")
	hedger := newMockExchange("hedger")

	e := newTestEngine(t, maker, hedger, nil)
	require.NoError(t, e.openPosition(context.Background()))

	st := e.position()
	assert.True(t, st.IsOpen)
	assert.Equal(t, domain.SideBuy, st.Maker.Side)
	assert.Equal(t, domain.SideSell, st.Hedge.Side)
	assert.True(t, st.Maker.Quantity.Equal(d("0.002")))

	// 对冲腿按 maker 实际成交量市价下单
	require.Equal(t, 1, hedger.marketCallCount())
	call := hedger.lastMarketCall()
	assert.True(t, call.qty.Equal(d("0.002")))
	assert.Equal(t, domain.SideSell, call.side)
}

func TestOpenPositionReverse(t *testing.T) {
	maker := newMockExchange("maker")
	hedger := newMockExchange("hedger")
	cfg := testConfig(t)
	cfg.Reverse = true

	e := newTestEngine(t, maker, hedger, cfg)
	require.NoError(t, e.openPosition(context.Background()))

	st := e.position()
	assert.Equal(t, domain.SideSell, st.Maker.Side)
	assert.Equal(t, domain.SideBuy, st.Hedge.Side)
}

func TestOpenPositionPartialFillBalancesLegs(t *testing.T) {
	maker := newMockExchange("maker")
	hedger := newMockExchange("hedger")
	// maker 腿只成交一半：部分成交视同成交，对冲腿必须按实际量开
	maker.placePostOnly = func(qty, price decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
		return &domain.OrderResult{
			Success:    true,
			OrderID:    "po-partial",
			Side:       side,
			Status:     domain.OrderStatusPartiallyFilled,
			FilledSize: d("0.001"),
			AvgPrice:   price,
		}, nil
	}

	e := newTestEngine(t, maker, hedger, nil)
	require.NoError(t, e.openPosition(context.Background()))

	st := e.position()
	assert.True(t, st.Maker.Quantity.Equal(d("0.001")))
	assert.True(t, st.Hedge.Quantity.Equal(d("0.001")))
	assert.True(t, hedger.lastMarketCall().qty.Equal(d("0.001")),
		"对冲量必须等于 maker 实际成交量，不是目标量")
}

func TestOpenPositionHedgeFailureCompensates(t *testing.T) {
	maker := newMockExchange("maker")
	hedger := newMockExchange("hedger")
	hedger.placeMarket = func(decimal.Decimal, domain.Side) (*domain.OrderResult, error) {
		return nil, errors.New("exchange unavailable")
	}

	e := newTestEngine(t, maker, hedger, nil)
	err := e.openPosition(context.Background())
	assert.ErrorIs(t, err, ErrHedgeLegFailure)
	assert.False(t, e.position().IsOpen)

	// 回滚：maker 腿交易所一笔反向市价单，数量等于成交量
	require.Equal(t, 1, maker.marketCallCount())
	call := maker.lastMarketCall()
	assert.Equal(t, domain.SideSell, call.side, "买入开仓的回滚是卖出")
	assert.True(t, call.qty.Equal(d("0.002")))
}

func TestOpenPositionCompensationFailure(t *testing.T) {
	maker := newMockExchange("maker")
	hedger := newMockExchange("hedger")
	hedger.placeMarket = func(decimal.Decimal, domain.Side) (*domain.OrderResult, error) {
		return nil, errors.New("exchange unavailable")
	}
	maker.placeMarket = func(decimal.Decimal, domain.Side) (*domain.OrderResult, error) {
		return nil, errors.New("maker also down")
	}

	e := newTestEngine(t, maker, hedger, nil)
	err := e.openPosition(context.Background())
	assert.ErrorIs(t, err, ErrCompensationFailure)
	assert.False(t, e.position().IsOpen)
	// 回滚恰好尝试一笔，不能无限补单
	assert.Equal(t, 1, maker.marketCallCount())
}

func TestOpenPositionHedgeNotFilledCompensates(t *testing.T) {
	maker := newMockExchange("maker")
	hedger := newMockExchange("hedger")
	// 市价单返回成功但零成交，同样按对冲失败处理
	hedger.placeMarket = func(qty decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
		return &domain.OrderResult{OrderID: "mkt-0", Side: side, Status: domain.OrderStatusCanceled}, nil
	}

	e := newTestEngine(t, maker, hedger, nil)
	err := e.openPosition(context.Background())
	assert.ErrorIs(t, err, ErrHedgeLegFailure)
	assert.Equal(t, 1, maker.marketCallCount(), "必须回滚 maker 腿")
}

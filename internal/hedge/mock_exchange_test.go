package hedge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/gohedge/internal/domain"
	"github.com/betbot/gohedge/pkg/config"
)

// placedCall 记录一次下单调用
type placedCall struct {
	qty   decimal.Decimal
	price decimal.Decimal
	side  domain.Side
}

// mockExchange 可编程的交易所桩。行为通过函数字段注入，
// 所有下单/撤单调用都会被记录下来供断言。
type mockExchange struct {
	name string

	fetchBBO      func() (domain.BBO, error)
	placeMarket   func(qty decimal.Decimal, side domain.Side) (*domain.OrderResult, error)
	placePostOnly func(qty, price decimal.Decimal, side domain.Side) (*domain.OrderResult, error)
	getStatus     func(orderID string) (*domain.OrderResult, error)
	cancelFn      func(orderID string) error

	attrs   domain.ContractAttrs
	balance decimal.Decimal

	mu            sync.Mutex
	postOnlyCalls []placedCall
	marketCalls   []placedCall
	cancels       []string
}

func newMockExchange(name string) *mockExchange {
	return &mockExchange{
		name: name,
		attrs: domain.ContractAttrs{
			ContractID:   name + "-BTC",
			TickSize:     decimal.RequireFromString("0.1"),
			LotIncrement: decimal.RequireFromString("0.0001"),
		},
		balance: decimal.RequireFromString("10000"),
		fetchBBO: func() (domain.BBO, error) {
			return domain.BBO{
				Bid: decimal.RequireFromString("49999.9"),
				Ask: decimal.RequireFromString("50000.1"),
			}, nil
		},
	}
}

func (m *mockExchange) Name() string { return m.name }
func (m *mockExchange) Close() error { return nil }

func (m *mockExchange) ContractAttributes(context.Context, string) (domain.ContractAttrs, error) {
	return m.attrs, nil
}

func (m *mockExchange) FetchBBO(context.Context, string) (domain.BBO, error) {
	return m.fetchBBO()
}

func (m *mockExchange) AccountBalance(context.Context) (decimal.Decimal, error) {
	return m.balance, nil
}

func (m *mockExchange) PlaceMarketOrder(_ context.Context, _ string, qty decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
	m.mu.Lock()
	m.marketCalls = append(m.marketCalls, placedCall{qty: qty, side: side})
	m.mu.Unlock()
	if m.placeMarket != nil {
		return m.placeMarket(qty, side)
	}
	// 默认：市价单全量成交
	return &domain.OrderResult{
		Success:    true,
		OrderID:    "mkt-1",
		Side:       side,
		Status:     domain.OrderStatusFilled,
		FilledSize: qty,
		AvgPrice:   decimal.RequireFromString("50000"),
	}, nil
}

func (m *mockExchange) PlacePostOnlyOrder(_ context.Context, _ string, qty, price decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
	m.mu.Lock()
	m.postOnlyCalls = append(m.postOnlyCalls, placedCall{qty: qty, price: price, side: side})
	m.mu.Unlock()
	if m.placePostOnly != nil {
		return m.placePostOnly(qty, price, side)
	}
	// 默认：挂单即时全量成交
	return &domain.OrderResult{
		Success:    true,
		OrderID:    "po-1",
		Side:       side,
		Status:     domain.OrderStatusFilled,
		FilledSize: qty,
		AvgPrice:   price,
	}, nil
}

func (m *mockExchange) GetOrderStatus(_ context.Context, orderID string) (*domain.OrderResult, error) {
	if m.getStatus != nil {
		return m.getStatus(orderID)
	}
	return &domain.OrderResult{OrderID: orderID, Status: domain.OrderStatusOpen, Success: true}, nil
}

func (m *mockExchange) CancelOrder(_ context.Context, orderID string) error {
	m.mu.Lock()
	m.cancels = append(m.cancels, orderID)
	m.mu.Unlock()
	if m.cancelFn != nil {
		return m.cancelFn(orderID)
	}
	return nil
}

func (m *mockExchange) marketCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.marketCalls)
}

func (m *mockExchange) lastMarketCall() placedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marketCalls[len(m.marketCalls)-1]
}

func (m *mockExchange) postOnlyCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.postOnlyCalls)
}

// filled 构造一个成交结果
func filled(orderID string, side domain.Side, qty, price string) *domain.OrderResult {
	return &domain.OrderResult{
		Success:    true,
		OrderID:    orderID,
		Side:       side,
		Status:     domain.OrderStatusFilled,
		FilledSize: decimal.RequireFromString(qty),
		AvgPrice:   decimal.RequireFromString(price),
	}
}

// rejected 构造一个拒单结果
func rejected(side domain.Side, reason string) *domain.OrderResult {
	return &domain.OrderResult{
		Side:         side,
		Status:       domain.OrderStatusRejected,
		ErrorMessage: reason,
	}
}

// testConfig 快速测试用的策略配置（所有时间参数都压到毫秒级）
func testConfig(t *testing.T) *config.HedgeConfig {
	t.Helper()
	cfg := &config.HedgeConfig{
		Ticker:    "BTC",
		Margin:    config.D("100"),
		MaxLoss:   config.D("10"),
		MaxProfit: config.D("20"),
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("配置校验失败: %v", err)
	}
	cfg.FillTimeout.Duration = 50 * time.Millisecond
	cfg.PollInterval.Duration = 5 * time.Millisecond
	cfg.RetryPause.Duration = time.Millisecond
	cfg.MonitorInterval.Duration = 5 * time.Millisecond
	cfg.CycleWait.Duration = time.Millisecond
	cfg.CloseMaxAttempts = 2
	cfg.OpenMaxAttempts = 3
	return cfg
}

// newTestEngine 构造绕过预检的引擎（合约属性直接用桩的值）
func newTestEngine(t *testing.T, maker, hedger *mockExchange, cfg *config.HedgeConfig) *Engine {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t)
	}
	e := New(Options{Config: cfg, Maker: maker, Hedger: hedger})
	e.makerAttrs = maker.attrs
	e.hedgeAttrs = hedger.attrs
	return e
}

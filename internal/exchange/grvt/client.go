// Package grvt 实现 GRVT 交易所客户端（REST）。
//
// 对冲策略里 GRVT 是 maker 腿：开/平仓都走 POST_ONLY 限价单贴盘口挂单，
// 吃 maker 费率；市价单只在紧急平仓和回滚时使用。
package grvt

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gohedge/internal/domain"
	"github.com/betbot/gohedge/internal/exchange"
	"github.com/betbot/gohedge/pkg/config"
	"github.com/betbot/gohedge/pkg/ratelimit"
)

const Name = "grvt"

var log = logrus.WithField("exchange", Name)

const (
	prodBaseURL    = "https://trades.grvt.io/full/v1"
	testnetBaseURL = "https://trades.testnet.grvt.io/full/v1"
)

// Credentials GRVT 凭证（显式结构体传入，禁止通过全局环境变量隐式获取）
type Credentials struct {
	APIKey           string
	PrivateKey       string // 订单签名用 secp256k1 私钥（hex）
	TradingAccountID string
}

// CredentialsFromEnv 按固定键名从 lookup 读取凭证
func CredentialsFromEnv(lookup exchange.SecretLookup) (Credentials, error) {
	c := Credentials{}
	var ok bool
	if c.APIKey, ok = lookup("GRVT_API_KEY"); !ok {
		return c, fmt.Errorf("缺少凭证 GRVT_API_KEY")
	}
	if c.PrivateKey, ok = lookup("GRVT_PRIVATE_KEY"); !ok {
		return c, fmt.Errorf("缺少凭证 GRVT_PRIVATE_KEY")
	}
	if c.TradingAccountID, ok = lookup("GRVT_TRADING_ACCOUNT_ID"); !ok {
		return c, fmt.Errorf("缺少凭证 GRVT_TRADING_ACCOUNT_ID")
	}
	return c, nil
}

// Client GRVT REST 客户端，实现 exchange.Exchange
type Client struct {
	http   *resty.Client
	creds  Credentials
	signer *Signer
	limits *ratelimit.Manager
	nonce  atomic.Uint32
}

var _ exchange.Exchange = (*Client)(nil)

// New 创建 GRVT 客户端
func New(creds Credentials, vc config.VenueConfig, limits *ratelimit.Manager) (*Client, error) {
	signer, err := NewSigner(creds.PrivateKey)
	if err != nil {
		return nil, err
	}

	baseURL := vc.BaseURL
	if baseURL == "" {
		if strings.EqualFold(vc.Environment, "testnet") {
			baseURL = testnetBaseURL
		} else {
			baseURL = prodBaseURL
		}
	}

	if limits == nil {
		limits = ratelimit.NewManager()
	}

	// resty 会自动从环境变量读取代理配置（HTTP_PROXY / HTTPS_PROXY）
	http := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Grvt-Api-Key", creds.APIKey)

	c := &Client{
		http:   http,
		creds:  creds,
		signer: signer,
		limits: limits,
	}
	c.nonce.Store(uint32(time.Now().UnixNano()))
	return c, nil
}

func (c *Client) Name() string { return Name }

// Close REST 客户端无持久连接，无需清理
func (c *Client) Close() error { return nil }

func (c *Client) nextNonce() uint32 {
	return c.nonce.Add(1)
}

// post 发送请求并处理 HTTP 层错误（业务错误由调用方检查 apiError）
func (c *Client) post(ctx context.Context, limitKey, endpoint string, body, out any) error {
	if err := c.limits.Wait(ctx, limitKey); err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		Post(endpoint)
	if err != nil {
		return errors.Wrapf(err, "grvt: 请求 %s 失败", endpoint)
	}
	if !resp.IsSuccess() {
		return errors.Errorf("grvt: %s 返回 %s: %s", endpoint, resp.Status(), resp.String())
	}
	return nil
}

// ContractAttributes 按 ticker 查询永续合约属性
func (c *Client) ContractAttributes(ctx context.Context, ticker string) (domain.ContractAttrs, error) {
	req := instrumentsRequest{
		Kind:      []string{"PERPETUAL"},
		Base:      []string{strings.ToUpper(ticker)},
		Quote:     []string{"USDT"},
		IsActive:  true,
		LimitSize: 20,
	}
	var resp instrumentsResponse
	if err := c.post(ctx, "grvt:ticker:get", "/instruments", req, &resp); err != nil {
		return domain.ContractAttrs{}, err
	}
	if resp.Error != nil {
		return domain.ContractAttrs{}, errors.Errorf("grvt: instruments 错误: %s", resp.Error.Message)
	}
	for _, ins := range resp.Result {
		if !strings.EqualFold(ins.Base, ticker) {
			continue
		}
		tick, err := decimal.NewFromString(ins.TickSize)
		if err != nil {
			return domain.ContractAttrs{}, errors.Wrap(err, "grvt: 解析 tick_size 失败")
		}
		// 最小数量单位由 base_decimals 决定：10^-base_decimals
		lot := decimal.New(1, int32(-ins.BaseDecimals))
		if ins.MinSize != "" {
			if ms, err := decimal.NewFromString(ins.MinSize); err == nil && ms.IsPositive() {
				lot = ms
			}
		}
		return domain.ContractAttrs{
			ContractID:   ins.Instrument,
			TickSize:     tick,
			LotIncrement: lot,
		}, nil
	}
	return domain.ContractAttrs{}, errors.Errorf("grvt: 未找到 ticker %s 对应的永续合约", ticker)
}

// FetchBBO 查询最优买一/卖一
func (c *Client) FetchBBO(ctx context.Context, contractID string) (domain.BBO, error) {
	var resp tickerResponse
	if err := c.post(ctx, "grvt:ticker:get", "/ticker", tickerRequest{Instrument: contractID}, &resp); err != nil {
		return domain.BBO{}, err
	}
	if resp.Error != nil {
		return domain.BBO{}, errors.Errorf("grvt: ticker 错误: %s", resp.Error.Message)
	}
	bid, err := decimal.NewFromString(resp.Result.BestBidPrice)
	if err != nil {
		return domain.BBO{}, domain.ErrStaleOrInvalidQuote
	}
	ask, err := decimal.NewFromString(resp.Result.BestAskPrice)
	if err != nil {
		return domain.BBO{}, domain.ErrStaleOrInvalidQuote
	}
	return domain.BBO{Bid: bid, Ask: ask}, nil
}

// PlaceMarketOrder 市价单（taker）
func (c *Client) PlaceMarketOrder(ctx context.Context, contractID string, qty decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
	return c.placeOrder(ctx, contractID, qty, decimal.Zero, side, true, false)
}

// PlacePostOnlyOrder 只挂不吃限价单（maker）
func (c *Client) PlacePostOnlyOrder(ctx context.Context, contractID string, qty, price decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
	return c.placeOrder(ctx, contractID, qty, price, side, false, true)
}

func (c *Client) placeOrder(ctx context.Context, contractID string, qty, price decimal.Decimal, side domain.Side, isMarket, postOnly bool) (*domain.OrderResult, error) {
	sig, err := c.signer.SignOrder(contractID, side, qty, price, c.nextNonce())
	if err != nil {
		return nil, err
	}

	var req createOrderRequest
	req.Order.SubAccountID = c.creds.TradingAccountID
	req.Order.IsMarket = isMarket
	req.Order.PostOnly = postOnly
	if isMarket {
		req.Order.TimeInForce = "IMMEDIATE_OR_CANCEL"
	} else {
		req.Order.TimeInForce = "GOOD_TILL_TIME"
	}
	leg := orderLeg{
		Instrument: contractID,
		Size:       qty.String(),
		IsBuying:   side == domain.SideBuy,
	}
	if !isMarket {
		leg.LimitPrice = price.String()
	}
	req.Order.Legs = []orderLeg{leg}
	req.Order.Signature = sig
	req.Order.Metadata = orderMetadata{ClientOrderID: uuid.NewString()}

	var resp orderResponse
	if err := c.post(ctx, "grvt:order:post", "/create_order", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		// 业务拒单（例如 post-only 会穿越盘口）返回 REJECTED 结果而非 error，
		// 让上层状态机按「可重试」处理
		log.Debugf("下单被拒: %s", resp.Error.Message)
		return &domain.OrderResult{
			Success:      false,
			Side:         side,
			Status:       domain.OrderStatusRejected,
			ErrorMessage: resp.Error.Message,
		}, nil
	}
	return parseOrderResult(&resp.Result, side), nil
}

// GetOrderStatus 查询订单状态
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*domain.OrderResult, error) {
	req := getOrderRequest{SubAccountID: c.creds.TradingAccountID, OrderID: orderID}
	var resp orderResponse
	if err := c.post(ctx, "grvt:order:get", "/order", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, errors.Errorf("grvt: 查单失败: %s", resp.Error.Message)
	}
	side := domain.SideSell
	if len(resp.Result.Legs) > 0 && resp.Result.Legs[0].IsBuying {
		side = domain.SideBuy
	}
	return parseOrderResult(&resp.Result, side), nil
}

// CancelOrder 撤单（尽力而为）
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	req := cancelOrderRequest{SubAccountID: c.creds.TradingAccountID, OrderID: orderID}
	var resp cancelOrderResponse
	if err := c.post(ctx, "grvt:order:delete", "/cancel_order", req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return errors.Errorf("grvt: 撤单失败: %s", resp.Error.Message)
	}
	return nil
}

// AccountBalance 账户可用余额（USDT 计）
func (c *Client) AccountBalance(ctx context.Context) (decimal.Decimal, error) {
	req := subAccountSummaryRequest{SubAccountID: c.creds.TradingAccountID}
	var resp subAccountSummaryResponse
	if err := c.post(ctx, "grvt:account:get", "/account_summary", req, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.Error != nil {
		return decimal.Zero, errors.Errorf("grvt: 查询余额失败: %s", resp.Error.Message)
	}
	bal, err := decimal.NewFromString(resp.Result.AvailableBalance)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "grvt: 解析余额失败")
	}
	return bal, nil
}

// parseOrderResult 把 GRVT 订单结构映射为统一 OrderResult
func parseOrderResult(r *orderResult, side domain.Side) *domain.OrderResult {
	out := &domain.OrderResult{
		OrderID: r.OrderID,
		Side:    side,
	}
	if len(r.State.TradedSize) > 0 {
		if v, err := decimal.NewFromString(r.State.TradedSize[0]); err == nil {
			out.FilledSize = v
		}
	}
	if len(r.State.AvgFillPrice) > 0 {
		if v, err := decimal.NewFromString(r.State.AvgFillPrice[0]); err == nil {
			out.AvgPrice = v
		}
	}

	switch strings.ToUpper(r.State.Status) {
	case "FILLED":
		out.Status = domain.OrderStatusFilled
		out.Success = true
	case "OPEN", "PENDING":
		if out.FilledSize.IsPositive() {
			out.Status = domain.OrderStatusPartiallyFilled
		} else {
			out.Status = domain.OrderStatusOpen
		}
		out.Success = true
	case "CANCELLED", "CANCELED":
		if out.FilledSize.IsPositive() {
			// 撤单前已部分成交：按部分成交处理
			out.Status = domain.OrderStatusPartiallyFilled
			out.Success = true
		} else {
			out.Status = domain.OrderStatusCanceled
		}
	case "REJECTED":
		out.Status = domain.OrderStatusRejected
		out.ErrorMessage = r.State.RejectReason
	default:
		out.Status = domain.OrderStatusOpen
		out.Success = true
	}
	return out
}

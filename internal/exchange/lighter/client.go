// Package lighter 实现 Lighter 交易所客户端（REST + WebSocket 盘口）。
//
// 对冲策略里 Lighter 是 taker 腿：maker 腿成交后立刻在这边市价对冲，
// 盘口走 WebSocket 推送（REST 兜底），下单/查单走 REST。
package lighter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
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

const Name = "lighter"

var log = logrus.WithField("exchange", Name)

const (
	prodBaseURL    = "https://mainnet.zklighter.elliot.ai"
	testnetBaseURL = "https://testnet.zklighter.elliot.ai"
	prodWsURL      = "wss://mainnet.zklighter.elliot.ai/stream"
	testnetWsURL   = "wss://testnet.zklighter.elliot.ai/stream"
)

// Credentials Lighter 凭证（显式结构体传入，禁止通过全局环境变量隐式获取）
type Credentials struct {
	APIKeyPrivateKey string // HMAC 签名密钥（hex）
	AccountIndex     int64
	APIKeyIndex      int64
}

// CredentialsFromEnv 按固定键名从 lookup 读取凭证
func CredentialsFromEnv(lookup exchange.SecretLookup) (Credentials, error) {
	c := Credentials{}
	key, ok := lookup("LIGHTER_API_KEY_PRIVATE_KEY")
	if !ok {
		return c, fmt.Errorf("缺少凭证 LIGHTER_API_KEY_PRIVATE_KEY")
	}
	c.APIKeyPrivateKey = key

	acctStr, ok := lookup("LIGHTER_ACCOUNT_INDEX")
	if !ok {
		return c, fmt.Errorf("缺少凭证 LIGHTER_ACCOUNT_INDEX")
	}
	acct, err := strconv.ParseInt(strings.TrimSpace(acctStr), 10, 64)
	if err != nil {
		return c, fmt.Errorf("LIGHTER_ACCOUNT_INDEX 不是合法整数: %w", err)
	}
	c.AccountIndex = acct

	// api_key_index 可省略，默认 0
	if idxStr, ok := lookup("LIGHTER_API_KEY_INDEX"); ok && strings.TrimSpace(idxStr) != "" {
		idx, err := strconv.ParseInt(strings.TrimSpace(idxStr), 10, 64)
		if err != nil {
			return c, fmt.Errorf("LIGHTER_API_KEY_INDEX 不是合法整数: %w", err)
		}
		c.APIKeyIndex = idx
	}
	return c, nil
}

// Client Lighter 客户端，实现 exchange.Exchange
type Client struct {
	http   *resty.Client
	creds  Credentials
	limits *ratelimit.Manager
	wsURL  string

	// 每个 market 一个盘口流；按需建立，Close 时统一回收
	books *bookHub
}

var _ exchange.Exchange = (*Client)(nil)

// New 创建 Lighter 客户端
func New(creds Credentials, vc config.VenueConfig, limits *ratelimit.Manager) (*Client, error) {
	if creds.APIKeyPrivateKey == "" {
		return nil, fmt.Errorf("lighter: 签名密钥为空")
	}

	baseURL := vc.BaseURL
	wsURL := vc.WsURL
	if strings.EqualFold(vc.Environment, "testnet") {
		if baseURL == "" {
			baseURL = testnetBaseURL
		}
		if wsURL == "" {
			wsURL = testnetWsURL
		}
	} else {
		if baseURL == "" {
			baseURL = prodBaseURL
		}
		if wsURL == "" {
			wsURL = prodWsURL
		}
	}

	if limits == nil {
		limits = ratelimit.NewManager()
	}

	c := &Client{
		creds:  creds,
		limits: limits,
		wsURL:  wsURL,
		books:  newBookHub(wsURL),
	}
	c.http = resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json").
		OnBeforeRequest(c.signRequest)
	return c, nil
}

func (c *Client) Name() string { return Name }

// Close 停止所有盘口流
func (c *Client) Close() error {
	c.books.close()
	return nil
}

// signRequest 请求签名：HMAC-SHA256(timestamp + method + path + body)，
// 时间戳与签名放在请求头里
func (c *Client) signRequest(_ *resty.Client, req *resty.Request) error {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	var body string
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return errors.Wrap(err, "lighter: 序列化请求体失败")
		}
		body = string(raw)
	}

	mac := hmac.New(sha256.New, []byte(c.creds.APIKeyPrivateKey))
	mac.Write([]byte(ts))
	mac.Write([]byte(strings.ToUpper(req.Method)))
	mac.Write([]byte(req.URL))
	mac.Write([]byte(body))

	req.SetHeader("X-Lighter-Timestamp", ts)
	req.SetHeader("X-Lighter-Account-Index", strconv.FormatInt(c.creds.AccountIndex, 10))
	req.SetHeader("X-Lighter-Api-Key-Index", strconv.FormatInt(c.creds.APIKeyIndex, 10))
	req.SetHeader("X-Lighter-Signature", hex.EncodeToString(mac.Sum(nil)))
	return nil
}

func (c *Client) call(ctx context.Context, limitKey, method, endpoint string, body, out any) error {
	if err := c.limits.Wait(ctx, limitKey); err != nil {
		return err
	}
	r := c.http.R().SetContext(ctx).SetResult(out)
	if body != nil {
		r.SetBody(body)
	}
	resp, err := r.Execute(method, endpoint)
	if err != nil {
		return errors.Wrapf(err, "lighter: 请求 %s 失败", endpoint)
	}
	if !resp.IsSuccess() {
		return errors.Errorf("lighter: %s 返回 %s: %s", endpoint, resp.Status(), resp.String())
	}
	return nil
}

// ContractAttributes 按 ticker 查询 market id 和精度。
// Lighter 不直接给 tick/lot，而是给小数位数：tick = 10^-price_decimals，
// lot = 10^-size_decimals。
func (c *Client) ContractAttributes(ctx context.Context, ticker string) (domain.ContractAttrs, error) {
	var resp orderBooksResponse
	if err := c.call(ctx, "lighter:book:get", resty.MethodGet, "/api/v1/orderBooks", nil, &resp); err != nil {
		return domain.ContractAttrs{}, err
	}
	if resp.Code != 0 && resp.Code != 200 {
		return domain.ContractAttrs{}, errors.Errorf("lighter: orderBooks 错误: %s", resp.Message)
	}
	for _, ob := range resp.OrderBooks {
		if !strings.EqualFold(ob.Symbol, ticker) {
			continue
		}
		return domain.ContractAttrs{
			ContractID:   strconv.FormatInt(ob.MarketID, 10),
			TickSize:     decimal.New(1, int32(-ob.SupportedPriceDecimals)),
			LotIncrement: decimal.New(1, int32(-ob.SupportedSizeDecimals)),
		}, nil
	}
	return domain.ContractAttrs{}, errors.Errorf("lighter: 未找到 ticker %s 对应的市场", ticker)
}

// FetchBBO 获取最优买一/卖一：优先读 WebSocket 快照，过期则 REST 兜底
func (c *Client) FetchBBO(ctx context.Context, contractID string) (domain.BBO, error) {
	if bbo, ok := c.books.snapshot(contractID); ok {
		return bbo, nil
	}
	return c.fetchBBORest(ctx, contractID)
}

func (c *Client) fetchBBORest(ctx context.Context, contractID string) (domain.BBO, error) {
	marketID, err := strconv.ParseInt(contractID, 10, 64)
	if err != nil {
		return domain.BBO{}, errors.Wrapf(err, "lighter: 非法 market id %q", contractID)
	}
	var resp orderBookDetailsResponse
	endpoint := fmt.Sprintf("/api/v1/orderBookDetails?market_id=%d", marketID)
	if err := c.call(ctx, "lighter:book:get", resty.MethodGet, endpoint, nil, &resp); err != nil {
		return domain.BBO{}, err
	}
	if resp.Code != 0 && resp.Code != 200 {
		return domain.BBO{}, errors.Errorf("lighter: orderBookDetails 错误: %s", resp.Message)
	}
	for _, d := range resp.Details {
		if d.MarketID != marketID {
			continue
		}
		bid, err := decimal.NewFromString(d.BestBidPrice)
		if err != nil {
			return domain.BBO{}, domain.ErrStaleOrInvalidQuote
		}
		ask, err := decimal.NewFromString(d.BestAskPrice)
		if err != nil {
			return domain.BBO{}, domain.ErrStaleOrInvalidQuote
		}
		return domain.BBO{Bid: bid, Ask: ask}, nil
	}
	return domain.BBO{}, errors.Errorf("lighter: market %d 无盘口数据", marketID)
}

// StartBookStream 为指定 market 启动 WebSocket 盘口流。
// 不是必须的：不启动时 FetchBBO 每次走 REST。
func (c *Client) StartBookStream(ctx context.Context, contractID string) error {
	return c.books.start(ctx, contractID)
}

// PlaceMarketOrder 市价单（taker）
func (c *Client) PlaceMarketOrder(ctx context.Context, contractID string, qty decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
	return c.placeOrder(ctx, contractID, qty, decimal.Zero, side, true)
}

// PlacePostOnlyOrder 只挂不吃限价单（maker）
func (c *Client) PlacePostOnlyOrder(ctx context.Context, contractID string, qty, price decimal.Decimal, side domain.Side) (*domain.OrderResult, error) {
	return c.placeOrder(ctx, contractID, qty, price, side, false)
}

func (c *Client) placeOrder(ctx context.Context, contractID string, qty, price decimal.Decimal, side domain.Side, isMarket bool) (*domain.OrderResult, error) {
	marketID, err := strconv.ParseInt(contractID, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "lighter: 非法 market id %q", contractID)
	}

	payload := createOrderPayload{
		MarketID:      marketID,
		ClientOrderID: uuid.NewString(),
		Side:          strings.ToUpper(string(side)),
		Size:          qty.String(),
		AccountIndex:  c.creds.AccountIndex,
		APIKeyIndex:   c.creds.APIKeyIndex,
	}
	if isMarket {
		payload.OrderType = "MARKET"
		payload.TimeInForce = "IMMEDIATE_OR_CANCEL"
	} else {
		payload.OrderType = "LIMIT"
		payload.TimeInForce = "GOOD_TILL_CANCEL"
		payload.PostOnly = true
		payload.Price = price.String()
	}

	var resp orderResponse
	if err := c.call(ctx, "lighter:order:post", resty.MethodPost, "/api/v1/order", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 && resp.Code != 200 {
		// 业务拒单返回 REJECTED 结果而非 error，上层按可重试处理
		log.Debugf("下单被拒: %s", resp.Message)
		return &domain.OrderResult{
			Success:      false,
			Side:         side,
			Status:       domain.OrderStatusRejected,
			ErrorMessage: resp.Message,
		}, nil
	}
	return parseOrderResult(&resp.Order, side), nil
}

// GetOrderStatus 查询订单状态
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*domain.OrderResult, error) {
	var resp orderResponse
	endpoint := fmt.Sprintf("/api/v1/order?order_id=%s", orderID)
	if err := c.call(ctx, "lighter:order:get", resty.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 && resp.Code != 200 {
		return nil, errors.Errorf("lighter: 查单失败: %s", resp.Message)
	}
	side := domain.SideSell
	if strings.EqualFold(resp.Order.Side, "BUY") {
		side = domain.SideBuy
	}
	return parseOrderResult(&resp.Order, side), nil
}

// CancelOrder 撤单（尽力而为）
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	payload := cancelOrderPayload{
		OrderID:      orderID,
		AccountIndex: c.creds.AccountIndex,
		APIKeyIndex:  c.creds.APIKeyIndex,
	}
	var resp cancelOrderResponse
	if err := c.call(ctx, "lighter:order:delete", resty.MethodPost, "/api/v1/cancelOrder", payload, &resp); err != nil {
		return err
	}
	if resp.Code != 0 && resp.Code != 200 {
		return errors.Errorf("lighter: 撤单失败: %s", resp.Message)
	}
	return nil
}

// AccountBalance 账户可用余额（USDC 计）
func (c *Client) AccountBalance(ctx context.Context) (decimal.Decimal, error) {
	var resp accountResponse
	endpoint := fmt.Sprintf("/api/v1/account?by=index&value=%d", c.creds.AccountIndex)
	if err := c.call(ctx, "lighter:account:get", resty.MethodGet, endpoint, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.Code != 0 && resp.Code != 200 {
		return decimal.Zero, errors.Errorf("lighter: 查询余额失败: %s", resp.Message)
	}
	for _, a := range resp.Accounts {
		if a.AccountIndex != c.creds.AccountIndex {
			continue
		}
		bal, err := decimal.NewFromString(a.AvailableBalance)
		if err != nil {
			return decimal.Zero, errors.Wrap(err, "lighter: 解析余额失败")
		}
		return bal, nil
	}
	return decimal.Zero, errors.Errorf("lighter: 未找到账户 %d", c.creds.AccountIndex)
}

// parseOrderResult 把 Lighter 订单结构映射为统一 OrderResult
func parseOrderResult(o *orderPayload, side domain.Side) *domain.OrderResult {
	out := &domain.OrderResult{
		OrderID: o.OrderID,
		Side:    side,
	}
	if v, err := decimal.NewFromString(o.FilledSize); err == nil {
		out.FilledSize = v
	}
	if v, err := decimal.NewFromString(o.AvgFillPrice); err == nil {
		out.AvgPrice = v
	}

	switch strings.ToLower(o.Status) {
	case "filled":
		out.Status = domain.OrderStatusFilled
		out.Success = true
	case "partially_filled":
		out.Status = domain.OrderStatusPartiallyFilled
		out.Success = true
	case "canceled", "cancelled":
		if out.FilledSize.IsPositive() {
			out.Status = domain.OrderStatusPartiallyFilled
			out.Success = true
		} else {
			out.Status = domain.OrderStatusCanceled
		}
	case "rejected":
		out.Status = domain.OrderStatusRejected
		out.ErrorMessage = o.Reason
	default:
		out.Status = domain.OrderStatusOpen
		out.Success = true
	}
	return out
}

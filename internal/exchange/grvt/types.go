package grvt

// GRVT REST API 的请求/响应结构（只保留我们用到的字段）

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type instrumentsRequest struct {
	Kind      []string `json:"kind"`
	Base      []string `json:"base"`
	Quote     []string `json:"quote"`
	IsActive  bool     `json:"is_active"`
	LimitSize int      `json:"limit_size"`
}

type instrumentResult struct {
	Instrument        string `json:"instrument"`
	Base              string `json:"base"`
	Quote             string `json:"quote"`
	TickSize          string `json:"tick_size"`
	MinSize           string `json:"min_size"`
	BaseDecimals      int    `json:"base_decimals"`
	QuoteDecimals     int    `json:"quote_decimals"`
}

type instrumentsResponse struct {
	Result []instrumentResult `json:"result"`
	Error  *apiError          `json:"error"`
}

type tickerRequest struct {
	Instrument string `json:"instrument"`
}

type tickerResponse struct {
	Result struct {
		Instrument   string `json:"instrument"`
		BestBidPrice string `json:"best_bid_price"`
		BestAskPrice string `json:"best_ask_price"`
		MarkPrice    string `json:"mark_price"`
	} `json:"result"`
	Error *apiError `json:"error"`
}

type orderLeg struct {
	Instrument string `json:"instrument"`
	Size       string `json:"size"`
	LimitPrice string `json:"limit_price,omitempty"`
	IsBuying   bool   `json:"is_buying_asset"`
}

type orderSignature struct {
	Signer    string `json:"signer"`
	R         string `json:"r"`
	S         string `json:"s"`
	V         int    `json:"v"`
	ExpiryNs  int64  `json:"expiration"`
	Nonce     uint32 `json:"nonce"`
}

type createOrderRequest struct {
	Order struct {
		SubAccountID  string         `json:"sub_account_id"`
		TimeInForce   string         `json:"time_in_force"` // GOOD_TILL_TIME / IMMEDIATE_OR_CANCEL
		PostOnly      bool           `json:"post_only"`
		IsMarket      bool           `json:"is_market"`
		Legs          []orderLeg     `json:"legs"`
		Signature     orderSignature `json:"signature"`
		Metadata      orderMetadata  `json:"metadata"`
	} `json:"order"`
}

type orderMetadata struct {
	ClientOrderID string `json:"client_order_id"`
}

type orderState struct {
	Status       string   `json:"status"` // OPEN / FILLED / REJECTED / CANCELLED
	RejectReason string   `json:"reject_reason"`
	TradedSize   []string `json:"traded_size"`
	AvgFillPrice []string `json:"avg_fill_price"`
}

type orderResult struct {
	OrderID  string     `json:"order_id"`
	Legs     []orderLeg `json:"legs"`
	State    orderState `json:"state"`
	Metadata orderMetadata `json:"metadata"`
}

type orderResponse struct {
	Result orderResult `json:"result"`
	Error  *apiError   `json:"error"`
}

type getOrderRequest struct {
	SubAccountID string `json:"sub_account_id"`
	OrderID      string `json:"order_id"`
}

type cancelOrderRequest struct {
	SubAccountID string `json:"sub_account_id"`
	OrderID      string `json:"order_id"`
}

type cancelOrderResponse struct {
	Result struct {
		Ack bool `json:"ack"`
	} `json:"result"`
	Error *apiError `json:"error"`
}

type subAccountSummaryRequest struct {
	SubAccountID string `json:"sub_account_id"`
}

type subAccountSummaryResponse struct {
	Result struct {
		AvailableBalance string `json:"available_balance"`
		TotalEquity      string `json:"total_equity"`
	} `json:"result"`
	Error *apiError `json:"error"`
}

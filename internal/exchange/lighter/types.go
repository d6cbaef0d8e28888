package lighter

// Lighter REST/WS API 的请求/响应结构（只保留我们用到的字段）

type orderBooksResponse struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	OrderBooks []struct {
		Symbol                  string `json:"symbol"`
		MarketID                int64  `json:"market_id"`
		SupportedPriceDecimals  int    `json:"supported_price_decimals"`
		SupportedSizeDecimals   int    `json:"supported_size_decimals"`
		Status                  string `json:"status"`
	} `json:"order_books"`
}

type orderBookDetailsResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details []struct {
		MarketID     int64  `json:"market_id"`
		BestBidPrice string `json:"best_bid_price"`
		BestAskPrice string `json:"best_ask_price"`
	} `json:"order_book_details"`
}

type createOrderPayload struct {
	MarketID     int64  `json:"market_id"`
	ClientOrderID string `json:"client_order_id"`
	Side         string `json:"side"`       // BUY / SELL
	OrderType    string `json:"order_type"` // MARKET / LIMIT
	TimeInForce  string `json:"time_in_force,omitempty"`
	PostOnly     bool   `json:"post_only"`
	Price        string `json:"price,omitempty"`
	Size         string `json:"size"`
	AccountIndex int64  `json:"account_index"`
	APIKeyIndex  int64  `json:"api_key_index"`
}

type orderPayload struct {
	OrderID       string `json:"order_id"`
	ClientOrderID string `json:"client_order_id"`
	MarketID      int64  `json:"market_id"`
	Side          string `json:"side"`
	Status        string `json:"status"` // open / filled / partially_filled / canceled / rejected
	FilledSize    string `json:"filled_size"`
	AvgFillPrice  string `json:"avg_fill_price"`
	Reason        string `json:"reason"`
}

type orderResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Order   orderPayload `json:"order"`
}

type cancelOrderPayload struct {
	OrderID      string `json:"order_id"`
	MarketID     int64  `json:"market_id"`
	AccountIndex int64  `json:"account_index"`
	APIKeyIndex  int64  `json:"api_key_index"`
}

type cancelOrderResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type accountResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Accounts []struct {
		AccountIndex     int64  `json:"account_index"`
		AvailableBalance string `json:"available_balance"`
		Collateral       string `json:"collateral"`
	} `json:"accounts"`
}

// wsSubscribe 订阅消息
type wsSubscribe struct {
	Type    string `json:"type"` // subscribe
	Channel string `json:"channel"`
}

// wsBookMessage 盘口推送。快照和增量共用一个结构：
// Lighter 的 order_book 频道首帧是全量，之后每帧携带最新价位，
// 我们只关心两端最优价，所以每帧都按「取各自最优」处理。
type wsBookMessage struct {
	Type      string `json:"type"` // subscribed/update/snapshot
	Channel   string `json:"channel"`
	OrderBook struct {
		Bids []wsLevel `json:"bids"`
		Asks []wsLevel `json:"asks"`
	} `json:"order_book"`
}

type wsLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

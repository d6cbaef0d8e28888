package hedge

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/betbot/gohedge/internal/domain"
	"github.com/betbot/gohedge/internal/exchange"
)

// FreshBBO 获取并校验一次盘口。任一边非正数时返回 ErrStaleOrInvalidQuote，
// 调用方按「可重试」处理（暂停后重取），绝不用坏报价定价或算盈亏。
func FreshBBO(ctx context.Context, ex exchange.Exchange, contractID string) (domain.BBO, error) {
	bbo, err := ex.FetchBBO(ctx, contractID)
	if err != nil {
		return domain.BBO{}, err
	}
	if err := bbo.Validate(); err != nil {
		return domain.BBO{}, err
	}
	return bbo, nil
}

// CombinedMid 两个交易所中间价的均值，只用于日志展示
func CombinedMid(a, b domain.BBO) decimal.Decimal {
	return a.Mid().Add(b.Mid()).Div(decimal.NewFromInt(2))
}

package hedge

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/gohedge/internal/domain"
	"github.com/betbot/gohedge/internal/exchange"
)

// compensate 回滚：对冲腿失败后，在 maker 腿交易所按实际成交量反向市价平掉，
// 恰好一笔，不多不少。回滚单也失败是整个系统最严重的状况——
// 账户带着单边裸敞口，只能告警请人工介入，不能自动无限补单
// （补单风暴比裸敞口更糟）。
func (e *Engine) compensate(ctx context.Context, ex exchange.Exchange, contractID string, side domain.Side, qty decimal.Decimal) error {
	log.Warnf("⚠️ 回滚: %s %s qty=%s", ex.Name(), side, qty)

	// 退出信号到达后回滚仍要完成，换独立超时 ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), closeGraceTimeout)
		defer cancel()
	}

	result, err := ex.PlaceMarketOrder(ctx, contractID, qty, side)
	if err == nil && result.Filled() {
		log.Infof("✓ 回滚完成: price=%s qty=%s", result.AvgPrice, result.FilledSize)
		return nil
	}

	reason := "回滚单未成交"
	if err != nil {
		reason = err.Error()
	} else if result.ErrorMessage != "" {
		reason = result.ErrorMessage
	}
	log.Errorf("回滚失败: %s", reason)
	e.alert(ctx, fmt.Sprintf("🚨 回滚失败，存在单边敞口，需人工介入！%s %s %s qty=%s 原因: %s",
		ex.Name(), e.cfg.Ticker, side, qty, reason))
	return errors.Wrap(ErrCompensationFailure, reason)
}

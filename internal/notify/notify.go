// Package notify 告警通知：Lark / Telegram webhook 推送。
//
// 通知是尽力而为的旁路：发送失败只记日志，绝不影响交易主流程。
package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/betbot/gohedge/internal/exchange"
)

var log = logrus.WithField("module", "notify")

// Notifier 通知接口
type Notifier interface {
	SendText(ctx context.Context, msg string) error
}

// Multi 扇出到多个通知渠道，逐个发送，失败只记日志
type Multi []Notifier

func (m Multi) SendText(ctx context.Context, msg string) error {
	for _, n := range m {
		if err := n.SendText(ctx, msg); err != nil {
			log.Warnf("⚠️ 通知发送失败: %v", err)
		}
	}
	return nil
}

// Noop 空实现（未配置任何渠道时使用）
type Noop struct{}

func (Noop) SendText(context.Context, string) error { return nil }

// FromEnv 按环境变量组装通知渠道：
// LARK_TOKEN 启用 Lark，TELEGRAM_BOT_TOKEN + TELEGRAM_CHAT_ID 启用 Telegram。
// 一个渠道都没配时返回 Noop。
func FromEnv(lookup exchange.SecretLookup) Notifier {
	var channels Multi
	if token, ok := lookup("LARK_TOKEN"); ok && token != "" {
		channels = append(channels, NewLark(token))
		log.Info("✓ Lark 通知已启用")
	}
	botToken, okToken := lookup("TELEGRAM_BOT_TOKEN")
	chatID, okChat := lookup("TELEGRAM_CHAT_ID")
	if okToken && okChat && botToken != "" && chatID != "" {
		channels = append(channels, NewTelegram(botToken, chatID))
		log.Info("✓ Telegram 通知已启用")
	}
	if len(channels) == 0 {
		return Noop{}
	}
	return channels
}

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram 机器人通知
type Telegram struct {
	http   *resty.Client
	base   string
	token  string
	chatID string
}

// NewTelegram 创建 Telegram 通知器
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		http:   resty.New().SetTimeout(10 * time.Second),
		base:   telegramAPIBase,
		token:  botToken,
		chatID: chatID,
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendText 发送文本消息
func (t *Telegram) SendText(ctx context.Context, msg string) error {
	body := map[string]string{
		"chat_id": t.chatID,
		"text":    msg,
	}
	var out telegramResponse
	resp, err := t.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.token))
	if err != nil {
		return errors.Wrap(err, "telegram: 发送失败")
	}
	if !resp.IsSuccess() || !out.OK {
		return fmt.Errorf("telegram: 发送失败: status=%s desc=%s", resp.Status(), out.Description)
	}
	return nil
}

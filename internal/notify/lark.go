package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const larkWebhookBase = "https://open.larksuite.com/open-apis/bot/v2/hook/"

// Lark 群机器人 webhook 通知
type Lark struct {
	http  *resty.Client
	base  string
	token string
}

// NewLark 创建 Lark 通知器，token 为 webhook 地址最后一段
func NewLark(token string) *Lark {
	return &Lark{
		http:  resty.New().SetTimeout(10 * time.Second),
		base:  larkWebhookBase,
		token: token,
	}
}

type larkResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// SendText 发送文本消息
func (l *Lark) SendText(ctx context.Context, msg string) error {
	body := map[string]any{
		"msg_type": "text",
		"content":  map[string]string{"text": msg},
	}
	var out larkResponse
	resp, err := l.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(l.base + l.token)
	if err != nil {
		return errors.Wrap(err, "lark: 发送失败")
	}
	if !resp.IsSuccess() || out.Code != 0 {
		return fmt.Errorf("lark: 发送失败: status=%s code=%d msg=%s", resp.Status(), out.Code, out.Msg)
	}
	return nil
}

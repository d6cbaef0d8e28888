package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Decimal 是 shopspring/decimal 的 YAML/JSON 包装。
//
// 资金相关配置（margin / maxLoss / maxProfit）必须是精确小数：
// 如果直接用 float64 解析再转 decimal，二进制浮点误差会进到阈值判断里。
// 这里始终从原始字符串解析。
type Decimal struct {
	decimal.Decimal
}

// D 从字符串构造（仅用于测试/默认值，解析失败会 panic）
func D(s string) Decimal {
	return Decimal{decimal.RequireFromString(s)}
}

func (d *Decimal) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("unsupported decimal node: kind=%d tag=%s", value.Kind, value.Tag)
	}
	s := strings.TrimSpace(value.Value)
	if s == "" || s == "~" || s == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	dd, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	d.Decimal = dd
	return nil
}

func (d *Decimal) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		s = strings.TrimSpace(raw)
	}
	dd, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	d.Decimal = dd
	return nil
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Decimal.String())
}

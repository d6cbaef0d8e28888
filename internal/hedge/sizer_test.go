package hedge

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSizeByMargin(t *testing.T) {
	tests := []struct {
		name   string
		margin string
		price  string
		lot    string
		want   string
	}{
		{"整除", "100", "50000", "0.0001", "0.002"},
		{"向下取整", "100", "30000", "0.001", "0.003"},
		{"大单位", "1000", "3000", "0.01", "0.33"},
		{"恰好一个单位", "5", "50000", "0.0001", "0.0001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SizeByMargin(d(tt.margin), d(tt.price), d(tt.lot))
			require.NoError(t, err)
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
			// 名义价值绝不超过目标本金
			assert.True(t, got.Mul(d(tt.price)).LessThanOrEqual(d(tt.margin)))
		})
	}
}

func TestSizeByMarginErrors(t *testing.T) {
	_, err := SizeByMargin(d("100"), decimal.Zero, d("0.001"))
	assert.Error(t, err, "价格为零必须报错")

	_, err = SizeByMargin(d("100"), d("50000"), decimal.Zero)
	assert.Error(t, err, "lot 为零必须报错")

	_, err = SizeByMargin(d("1"), d("50000"), d("0.001"))
	assert.Error(t, err, "本金不足一个最小单位必须报错")
}

func TestNotionalDeviationPct(t *testing.T) {
	// 115 相对 100 偏离 15%
	assert.True(t, NotionalDeviationPct(d("115"), d("100")).Equal(d("15")))
	// 对称：85 相对 100 也是 15%
	assert.True(t, NotionalDeviationPct(d("85"), d("100")).Equal(d("15")))
	assert.True(t, NotionalDeviationPct(d("100"), d("100")).IsZero())
}

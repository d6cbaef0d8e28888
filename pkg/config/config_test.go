package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
hedge:
  ticker: eth
  margin: "100"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ETH", cfg.Hedge.Ticker, "ticker 统一大写")
	assert.Equal(t, 5*time.Minute, cfg.Hedge.HoldTime.Duration)
	assert.Equal(t, 20*time.Second, cfg.Hedge.CycleWait.Duration)
	assert.Equal(t, 3*time.Second, cfg.Hedge.FillTimeout.Duration)
	assert.Equal(t, 200*time.Millisecond, cfg.Hedge.PollInterval.Duration)
	assert.Equal(t, time.Second, cfg.Hedge.MonitorInterval.Duration)
	assert.Equal(t, 20, cfg.Hedge.CloseMaxAttempts)
	assert.Equal(t, 0, cfg.Hedge.OpenMaxAttempts, "默认无限追价")
	assert.True(t, cfg.Hedge.BalanceBuffer.Equal(D("1.2").Decimal))
	assert.True(t, cfg.Hedge.NotionalDeviationPct.Equal(D("15").Decimal))
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "data/persistence", cfg.PersistenceDir)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
hedge:
  ticker: BTC
  margin: "250.5"
  holdTime: 15m
  maxLoss: "12.5"
  maxProfit: "30"
  reverse: true
  cycleWait: 45
  fillTimeout: 5
  pollInterval: "300ms"
log:
  level: debug
history:
  enabled: true
status:
  enabled: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Hedge.Margin.Equal(D("250.5").Decimal))
	assert.Equal(t, 15*time.Minute, cfg.Hedge.HoldTime.Duration)
	assert.True(t, cfg.Hedge.MaxLoss.Equal(D("12.5").Decimal))
	assert.True(t, cfg.Hedge.Reverse)
	assert.Equal(t, 45*time.Second, cfg.Hedge.CycleWait.Duration, "整数按秒解析")
	assert.Equal(t, 300*time.Millisecond, cfg.Hedge.PollInterval.Duration)
	assert.Equal(t, "data/hedge_history.db", cfg.History.DBPath)
	assert.Equal(t, "127.0.0.1:9182", cfg.Status.ListenAddr)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*HedgeConfig)
	}{
		{"margin 为零", func(c *HedgeConfig) { c.Margin = Decimal{} }},
		{"maxLoss 为负", func(c *HedgeConfig) { c.MaxLoss = D("-1") }},
		{"maxProfit 为负", func(c *HedgeConfig) { c.MaxProfit = D("-1") }},
		{"openMaxAttempts 为负", func(c *HedgeConfig) { c.OpenMaxAttempts = -1 }},
		{"pollInterval 不小于 fillTimeout", func(c *HedgeConfig) {
			c.FillTimeout.Duration = time.Second
			c.PollInterval.Duration = time.Second
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &HedgeConfig{Ticker: "BTC", Margin: D("100")}
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDecimalYAML(t *testing.T) {
	path := writeConfig(t, `
hedge:
  margin: "0.1"
  maxLoss: 0.3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	// 无论带不带引号都按字符串精确解析，不经过 float64
	assert.Equal(t, "0.1", cfg.Hedge.Margin.String())
	assert.Equal(t, "0.3", cfg.Hedge.MaxLoss.String())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 顶层配置文件结构
type Config struct {
	Hedge   HedgeConfig   `yaml:"hedge" json:"hedge"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Grvt    VenueConfig   `yaml:"grvt" json:"grvt"`
	Lighter VenueConfig   `yaml:"lighter" json:"lighter"`
	History HistoryConfig `yaml:"history" json:"history"`
	Status  StatusConfig  `yaml:"status" json:"status"`

	// PersistenceDir 运行统计落盘目录（JSON），空则默认 data/persistence
	PersistenceDir string `yaml:"persistenceDir" json:"persistenceDir"`
}

// HedgeConfig 跨所对冲策略配置。
//
// 核心思想：
// - maker 腿（GRVT）用 POST_ONLY 限价单贴着盘口挂单（吃 maker 费率）
// - maker 成交后立刻在对冲腿（Lighter）按「实际成交量」市价对冲
// - 持仓期间每个 tick 用双边最新中间价计算绝对 USDC 总盈亏，
//   触发止损/止盈则紧急市价双腿平仓，到达持仓时长则正常（maker 追价）平仓
type HedgeConfig struct {
	Ticker string `yaml:"ticker" json:"ticker"`

	// Margin 每轮目标名义本金（USDC），必须 > 0
	Margin Decimal `yaml:"margin" json:"margin"`

	// HoldTime 持仓时长，到期正常平仓
	HoldTime Duration `yaml:"holdTime" json:"holdTime"`

	// MaxLoss / MaxProfit 绝对止损/止盈阈值（USDC，>=0）。
	// 注意是两腿合计的绝对盈亏，不是百分比：两腿名义价值会因精度截断
	// 而不完全相等，百分比在这里会引入歧义。
	MaxLoss   Decimal `yaml:"maxLoss" json:"maxLoss"`
	MaxProfit Decimal `yaml:"maxProfit" json:"maxProfit"`

	// Reverse false: GRVT 多 + Lighter 空；true: 方向反转
	Reverse bool `yaml:"reverse" json:"reverse"`

	// CycleWait 两轮之间的等待时长，默认 20s
	CycleWait Duration `yaml:"cycleWait" json:"cycleWait"`

	// OpenMaxAttempts 开仓 maker 腿追价次数上限；0 表示无限重试（直到收到退出信号）
	OpenMaxAttempts int `yaml:"openMaxAttempts" json:"openMaxAttempts"`

	// CloseMaxAttempts 正常平仓 maker 腿追价次数上限，用尽后回退紧急市价平仓，默认 20
	CloseMaxAttempts int `yaml:"closeMaxAttempts" json:"closeMaxAttempts"`

	// FillTimeout 单次挂单等待成交的超时，默认 3s
	FillTimeout Duration `yaml:"fillTimeout" json:"fillTimeout"`

	// PollInterval 订单状态轮询间隔，默认 200ms
	PollInterval Duration `yaml:"pollInterval" json:"pollInterval"`

	// MonitorInterval 持仓监控 tick 间隔，默认 1s
	MonitorInterval Duration `yaml:"monitorInterval" json:"monitorInterval"`

	// RetryPause 被拒单/报价异常后的重试间歇，默认 500ms
	RetryPause Duration `yaml:"retryPause" json:"retryPause"`

	// NotionalDeviationPct 实际名义价值偏离目标 margin 的告警阈值（%），默认 15。
	// 这是监控信号，不是错误。
	NotionalDeviationPct Decimal `yaml:"notionalDeviationPct" json:"notionalDeviationPct"`

	// BalanceBuffer 开机余额检查系数：要求余额 >= margin * buffer，默认 1.2
	// （覆盖初始保证金 + 维持保证金缓冲 + 手续费 + 滑点）
	BalanceBuffer Decimal `yaml:"balanceBuffer" json:"balanceBuffer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	OutputFile string `yaml:"outputFile" json:"outputFile"`
	MaxSizeMB  int    `yaml:"maxSizeMB" json:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups" json:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays" json:"maxAgeDays"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// VenueConfig 单个交易所的连接配置（凭证走环境变量/secretstore，不进配置文件）
type VenueConfig struct {
	Environment string `yaml:"environment" json:"environment"` // prod / testnet
	BaseURL     string `yaml:"baseURL" json:"baseURL"`         // 覆盖默认 REST 地址（可选）
	WsURL       string `yaml:"wsURL" json:"wsURL"`             // 覆盖默认 WS 地址（可选）
}

// HistoryConfig 周期历史（sqlite）配置
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	DBPath  string `yaml:"dbPath" json:"dbPath"`
}

// StatusConfig 状态/调试 HTTP 服务配置（建议仅监听 localhost）
type StatusConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listenAddr" json:"listenAddr"`
}

// Load 从 YAML 文件加载配置并应用默认值
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate 校验配置并填充默认值
func (c *Config) Validate() error {
	if err := c.Hedge.Validate(); err != nil {
		return err
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 7
	}

	if c.History.Enabled && strings.TrimSpace(c.History.DBPath) == "" {
		c.History.DBPath = "data/hedge_history.db"
	}
	if c.Status.Enabled && strings.TrimSpace(c.Status.ListenAddr) == "" {
		c.Status.ListenAddr = "127.0.0.1:9182"
	}
	if strings.TrimSpace(c.PersistenceDir) == "" {
		c.PersistenceDir = "data/persistence"
	}
	return nil
}

// Validate 校验策略配置并填充默认值
func (c *HedgeConfig) Validate() error {
	c.Ticker = strings.ToUpper(strings.TrimSpace(c.Ticker))
	if c.Ticker == "" {
		c.Ticker = "BTC"
	}

	if !c.Margin.IsPositive() {
		return fmt.Errorf("margin 必须大于 0（当前 %s）", c.Margin.String())
	}
	if c.MaxLoss.IsNegative() {
		return fmt.Errorf("maxLoss 不能为负数")
	}
	if c.MaxProfit.IsNegative() {
		return fmt.Errorf("maxProfit 不能为负数")
	}

	if c.HoldTime.Duration <= 0 {
		c.HoldTime.Duration = 5 * time.Minute
	}
	if c.CycleWait.Duration <= 0 {
		c.CycleWait.Duration = 20 * time.Second
	}
	if c.OpenMaxAttempts < 0 {
		return fmt.Errorf("openMaxAttempts 不能为负数（0 表示无限重试）")
	}
	if c.CloseMaxAttempts <= 0 {
		c.CloseMaxAttempts = 20
	}
	if c.FillTimeout.Duration <= 0 {
		c.FillTimeout.Duration = 3 * time.Second
	}
	if c.PollInterval.Duration <= 0 {
		c.PollInterval.Duration = 200 * time.Millisecond
	}
	if c.PollInterval.Duration >= c.FillTimeout.Duration {
		return fmt.Errorf("pollInterval 必须小于 fillTimeout")
	}
	if c.MonitorInterval.Duration <= 0 {
		c.MonitorInterval.Duration = time.Second
	}
	if c.RetryPause.Duration <= 0 {
		c.RetryPause.Duration = 500 * time.Millisecond
	}
	if !c.NotionalDeviationPct.IsPositive() {
		c.NotionalDeviationPct = D("15")
	}
	if !c.BalanceBuffer.IsPositive() {
		c.BalanceBuffer = D("1.2")
	}
	return nil
}

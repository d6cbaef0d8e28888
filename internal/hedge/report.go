package hedge

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/gohedge/pkg/persistence"
)

// Stats 运行统计（落盘 + 状态接口共用）
type Stats struct {
	StartTime time.Time       `json:"start_time"`
	Cycles    int             `json:"cycles"`
	Wins      int             `json:"wins"`
	Losses    int             `json:"losses"`
	Failures  int             `json:"failures"`
	TotalPnL  decimal.Decimal `json:"total_pnl"`
	LastPnL   decimal.Decimal `json:"last_pnl"`
	LastExit  string          `json:"last_exit"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RunningStats 带持久化的运行统计。进程重启后累计值从磁盘恢复。
type RunningStats struct {
	mu         sync.Mutex
	store      persistence.Store // 可为 nil（不落盘）
	data       Stats
	unrealized decimal.Decimal
}

// NewRunningStats 创建运行统计，store 可为 nil
func NewRunningStats(store persistence.Store) *RunningStats {
	return &RunningStats{
		store: store,
		data:  Stats{StartTime: time.Now()},
	}
}

// Load 从磁盘恢复累计统计（没有历史数据时保持零值）
func (s *RunningStats) Load() {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var saved Stats
	if err := s.store.Load(&saved); err != nil {
		if err != persistence.ErrNotExists {
			log.Warnf("⚠️ 恢复运行统计失败: %v", err)
		}
		return
	}
	start := s.data.StartTime
	s.data = saved
	s.data.StartTime = start
	log.Infof("✓ 运行统计已恢复: cycles=%d totalPnL=%s", saved.Cycles, saved.TotalPnL)
}

// RecordCycle 记录一轮完成的对冲（按已实现盈亏归类胜负）
func (s *RunningStats) RecordCycle(pnl decimal.Decimal, exit ExitTrigger) {
	s.mu.Lock()
	s.data.Cycles++
	if pnl.IsNegative() {
		s.data.Losses++
	} else {
		s.data.Wins++
	}
	s.data.TotalPnL = s.data.TotalPnL.Add(pnl)
	s.data.LastPnL = pnl
	s.data.LastExit = string(exit)
	s.data.UpdatedAt = time.Now()
	s.unrealized = decimal.Zero
	s.mu.Unlock()
	s.save()
}

// RecordFailure 记录一轮失败（没开成仓或开仓即回滚）
func (s *RunningStats) RecordFailure() {
	s.mu.Lock()
	s.data.Cycles++
	s.data.Failures++
	s.data.UpdatedAt = time.Now()
	s.unrealized = decimal.Zero
	s.mu.Unlock()
	s.save()
}

// SetUnrealized 更新当前未实现盈亏（监控循环每个 tick 调用）
func (s *RunningStats) SetUnrealized(pnl decimal.Decimal) {
	s.mu.Lock()
	s.unrealized = pnl
	s.mu.Unlock()
}

func (s *RunningStats) save() {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	data := s.data
	s.mu.Unlock()
	if err := s.store.Save(data); err != nil {
		log.Warnf("⚠️ 保存运行统计失败: %v", err)
	}
}

// Snapshot 当前统计快照
func (s *RunningStats) Snapshot() (Stats, decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data, s.unrealized
}

// StatusSnapshot 状态接口返回的完整快照
type StatusSnapshot struct {
	Ticker        string          `json:"ticker"`
	MakerVenue    string          `json:"maker_venue"`
	HedgeVenue    string          `json:"hedge_venue"`
	Position      PositionState   `json:"position"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Stats         Stats           `json:"stats"`
}

// Snapshot 返回引擎当前状态（状态 HTTP 服务用）
func (e *Engine) Snapshot() StatusSnapshot {
	stats, unrealized := e.stats.Snapshot()
	return StatusSnapshot{
		Ticker:        e.cfg.Ticker,
		MakerVenue:    e.maker.Name(),
		HedgeVenue:    e.hedger.Name(),
		Position:      e.position(),
		UnrealizedPnL: unrealized,
		Stats:         stats,
	}
}

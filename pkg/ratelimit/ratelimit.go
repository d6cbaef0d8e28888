package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter 速率限制器接口
type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	GetRemaining() int
}

// TokenBucket 令牌桶速率限制器
type TokenBucket struct {
	capacity   int           // 桶容量
	tokens     int           // 当前令牌数
	refillRate int           // 每秒补充的令牌数
	windowSize time.Duration // 时间窗口大小
	lastRefill time.Time     // 上次补充时间
	mu         sync.Mutex
}

// NewTokenBucket 创建新的令牌桶
func NewTokenBucket(capacity, refillRate int, windowSize time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		windowSize: windowSize,
		lastRefill: time.Now(),
	}
}

// refill 补充令牌
func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	tokensToAdd := int(elapsed.Seconds()) * tb.refillRate
	if tokensToAdd > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+tokensToAdd)
		tb.lastRefill = now
	}
}

// Allow 检查是否允许请求
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait 等待直到允许请求
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}

		tb.mu.Lock()
		tb.refill()
		waitTime := time.Duration(0)
		if tb.tokens == 0 && tb.refillRate > 0 {
			waitTime = time.Second / time.Duration(tb.refillRate)
		}
		tb.mu.Unlock()

		if waitTime <= 0 {
			waitTime = tb.windowSize
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// GetRemaining 获取剩余令牌数
func (tb *TokenBucket) GetRemaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

// SlidingWindow 滑动窗口速率限制器
type SlidingWindow struct {
	limit      int           // 限制数量
	windowSize time.Duration // 窗口大小
	requests   []time.Time   // 请求时间戳
	mu         sync.Mutex
}

// NewSlidingWindow 创建新的滑动窗口速率限制器
func NewSlidingWindow(limit int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:      limit,
		windowSize: windowSize,
		requests:   make([]time.Time, 0),
	}
}

// Allow 检查是否允许请求
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-sw.windowSize)

	// 移除窗口外的请求
	valid := sw.requests[:0]
	for _, req := range sw.requests {
		if req.After(cutoff) {
			valid = append(valid, req)
		}
	}
	sw.requests = valid

	if len(sw.requests) >= sw.limit {
		return false
	}

	sw.requests = append(sw.requests, now)
	return true
}

// Wait 等待直到允许请求
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		if sw.Allow() {
			return nil
		}

		sw.mu.Lock()
		oldest := time.Now()
		if len(sw.requests) > 0 {
			oldest = sw.requests[0]
		}
		waitTime := sw.windowSize - time.Since(oldest)
		sw.mu.Unlock()

		if waitTime <= 0 {
			waitTime = 100 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// GetRemaining 获取剩余请求数
func (sw *SlidingWindow) GetRemaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-sw.windowSize)

	validCount := 0
	for _, req := range sw.requests {
		if req.After(cutoff) {
			validCount++
		}
	}

	return max(0, sw.limit-validCount)
}

// Manager 速率限制管理器：按「交易所:端点」维度分配限制器
type Manager struct {
	limiters map[string]RateLimiter
	mu       sync.RWMutex
}

// NewManager 创建新的速率限制管理器
func NewManager() *Manager {
	m := &Manager{
		limiters: make(map[string]RateLimiter),
	}
	m.initDefaultLimiters()
	return m
}

// initDefaultLimiters 初始化常用端点的速率限制器
// 额度按两家交易所公开的 API 限制设置，留有余量。
func (m *Manager) initDefaultLimiters() {
	// GRVT API 限制
	m.limiters["grvt:order:post"] = NewTokenBucket(600, 60, 10*time.Second)
	m.limiters["grvt:order:delete"] = NewTokenBucket(600, 60, 10*time.Second)
	m.limiters["grvt:order:get"] = NewSlidingWindow(300, 10*time.Second)
	m.limiters["grvt:ticker:get"] = NewSlidingWindow(500, 10*time.Second)
	m.limiters["grvt:account:get"] = NewSlidingWindow(100, 10*time.Second)

	// Lighter API 限制
	m.limiters["lighter:order:post"] = NewTokenBucket(400, 40, 10*time.Second)
	m.limiters["lighter:order:delete"] = NewTokenBucket(400, 40, 10*time.Second)
	m.limiters["lighter:order:get"] = NewSlidingWindow(300, 10*time.Second)
	m.limiters["lighter:book:get"] = NewSlidingWindow(500, 10*time.Second)
	m.limiters["lighter:account:get"] = NewSlidingWindow(100, 10*time.Second)
}

// GetLimiter 获取指定端点的速率限制器
func (m *Manager) GetLimiter(endpoint string) RateLimiter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limiter, exists := m.limiters[endpoint]; exists {
		return limiter
	}
	// 默认限制器（1000/10s）
	return NewSlidingWindow(1000, 10*time.Second)
}

// Wait 等待直到允许请求
func (m *Manager) Wait(ctx context.Context, endpoint string) error {
	return m.GetLimiter(endpoint).Wait(ctx)
}

// Allow 检查是否允许请求
func (m *Manager) Allow(endpoint string) bool {
	return m.GetLimiter(endpoint).Allow()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package syncgroup

import (
	"sync"
)

type syncGroupFunc func()

// SyncGroup 是 sync.WaitGroup 的包装器，简化 goroutine 生命周期管理
// 自动管理 Add() 和 Done()，减少遗漏 Done() 的风险
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	fns     []syncGroupFunc
	running int // 当前运行的 goroutine 数量
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 添加一个 goroutine 函数（需在 Run 之前调用）
func (w *SyncGroup) Add(fn syncGroupFunc) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fns = append(w.fns, fn)
}

// Run 启动所有已添加的 goroutine，并清空函数列表避免重复启动。
// 如果上一批 goroutine 仍在运行，本次调用会被跳过，需先 WaitAndClear()。
func (w *SyncGroup) Run() {
	w.mu.Lock()
	if w.running > 0 {
		w.mu.Unlock()
		return
	}
	fns := w.fns
	w.fns = nil
	w.running = len(fns)
	w.mu.Unlock()

	for _, fn := range fns {
		w.wg.Add(1)
		go func(doFunc syncGroupFunc) {
			defer func() {
				w.wg.Done()
				w.mu.Lock()
				w.running--
				w.mu.Unlock()
			}()
			doFunc()
		}(fn)
	}
}

// WaitAndClear 等待所有 goroutine 完成并清空函数列表
func (w *SyncGroup) WaitAndClear() {
	w.wg.Wait()

	w.mu.Lock()
	w.fns = nil
	w.running = 0
	w.mu.Unlock()
}

// Wait 等待所有 goroutine 完成（不清空）
func (w *SyncGroup) Wait() {
	w.wg.Wait()
}

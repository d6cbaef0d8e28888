package lighter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/betbot/gohedge/internal/domain"
	"github.com/betbot/gohedge/pkg/syncgroup"
)

// 盘口快照超过这个时长视为过期，FetchBBO 回落到 REST
const bookStaleAfter = 2 * time.Second

const (
	wsHandshakeTimeout = 10 * time.Second
	wsReadTimeout      = 30 * time.Second
	wsReconnectPause   = 3 * time.Second
)

// bookSnapshot 一次盘口快照，整体原子替换
type bookSnapshot struct {
	bbo domain.BBO
	at  time.Time
}

// bookStream 单个 market 的 WebSocket 盘口流
type bookStream struct {
	marketID string
	url      string
	latest   atomic.Pointer[bookSnapshot]
	cancel   context.CancelFunc
	sg       *syncgroup.SyncGroup
}

// bookHub 按 market 管理盘口流
type bookHub struct {
	url     string
	mu      sync.Mutex
	streams map[string]*bookStream
	closed  bool
}

func newBookHub(url string) *bookHub {
	return &bookHub{
		url:     url,
		streams: make(map[string]*bookStream),
	}
}

// start 为指定 market 启动盘口流（重复调用是空操作）
func (h *bookHub) start(ctx context.Context, marketID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("lighter: 客户端已关闭")
	}
	if _, ok := h.streams[marketID]; ok {
		return nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &bookStream{
		marketID: marketID,
		url:      h.url,
		cancel:   cancel,
		sg:       syncgroup.NewSyncGroup(),
	}
	s.sg.Add(func() { s.run(streamCtx) })
	s.sg.Run()
	h.streams[marketID] = s

	log.Infof("✓ 盘口流已启动: market=%s", marketID)
	return nil
}

// snapshot 返回指定 market 的最新盘口；无流、无数据或数据过期时 ok=false
func (h *bookHub) snapshot(marketID string) (domain.BBO, bool) {
	h.mu.Lock()
	s, ok := h.streams[marketID]
	h.mu.Unlock()
	if !ok {
		return domain.BBO{}, false
	}
	snap := s.latest.Load()
	if snap == nil || time.Since(snap.at) > bookStaleAfter {
		return domain.BBO{}, false
	}
	if snap.bbo.Validate() != nil {
		return domain.BBO{}, false
	}
	return snap.bbo, true
}

// close 停止所有盘口流并等待 goroutine 退出
func (h *bookHub) close() {
	h.mu.Lock()
	h.closed = true
	streams := make([]*bookStream, 0, len(h.streams))
	for _, s := range h.streams {
		streams = append(streams, s)
	}
	h.streams = make(map[string]*bookStream)
	h.mu.Unlock()

	for _, s := range streams {
		s.cancel()
		s.sg.Wait()
	}
}

// run 带自动重连的读循环，ctx 取消时退出
func (s *bookStream) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.readLoop(ctx); err != nil && ctx.Err() == nil {
			log.Warnf("⚠️ 盘口流断开 market=%s: %v，%v 后重连", s.marketID, err, wsReconnectPause)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wsReconnectPause):
		}
	}
}

func (s *bookStream) readLoop(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("连接失败: %w", err)
	}
	defer conn.Close()

	// ctx 取消时强制关闭连接，让 ReadMessage 立刻返回
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := wsSubscribe{
		Type:    "subscribe",
		Channel: fmt.Sprintf("order_book/%s", s.marketID),
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("订阅失败: %w", err)
	}

	for {
		if err := conn.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			return err
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg wsBookMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debugf("盘口消息解析失败: %v", err)
			continue
		}
		if len(msg.OrderBook.Bids) == 0 || len(msg.OrderBook.Asks) == 0 {
			continue
		}

		bid, err1 := decimal.NewFromString(msg.OrderBook.Bids[0].Price)
		ask, err2 := decimal.NewFromString(msg.OrderBook.Asks[0].Price)
		if err1 != nil || err2 != nil {
			continue
		}
		bbo := domain.BBO{Bid: bid, Ask: ask}
		if bbo.Validate() != nil {
			continue
		}
		s.latest.Store(&bookSnapshot{bbo: bbo, at: time.Now()})
	}
}

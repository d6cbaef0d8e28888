// Package status 本地状态/调试 HTTP 服务。
//
// 只读旁路：暴露引擎快照、周期历史、expvar 和 pprof。
// 默认只监听 127.0.0.1，不做鉴权，不要暴露到公网。
package status

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gohedge/internal/hedge"
	"github.com/betbot/gohedge/internal/history"
)

var log = logrus.WithField("module", "status")

// Server 状态服务
type Server struct {
	engine *hedge.Engine
	hist   *history.Store // 可为 nil
	http   *http.Server
}

// New 创建状态服务
func New(addr string, engine *hedge.Engine, hist *history.Store) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{engine: engine, hist: hist}

	r.GET("/api/status", s.handleStatus)
	r.GET("/api/history", s.handleHistory)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	// Go 运行时调试端点
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))
	r.GET("/debug/pprof/*profile", gin.WrapF(pprofHandler))

	s.http = &http.Server{Addr: addr, Handler: r}
	return s
}

func pprofHandler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/debug/pprof/cmdline":
		pprof.Cmdline(w, r)
	case "/debug/pprof/profile":
		pprof.Profile(w, r)
	case "/debug/pprof/symbol":
		pprof.Symbol(w, r)
	case "/debug/pprof/trace":
		pprof.Trace(w, r)
	default:
		pprof.Index(w, r)
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.hist == nil {
		c.JSON(http.StatusOK, gin.H{"cycles": []any{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.hist.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": records})
}

// StartAsync 后台启动服务，ctx 取消时优雅关停
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		log.Infof("✓ 状态服务已启动: http://%s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warnf("⚠️ 状态服务异常退出: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			log.Warnf("⚠️ 状态服务关停失败: %v", err)
		}
	}()
}

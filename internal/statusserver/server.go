package statusserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/holotable/swgoh-autopilot/internal/config"
	"github.com/holotable/swgoh-autopilot/internal/recovery"
	"github.com/holotable/swgoh-autopilot/internal/store"
)

// Sources 状态接口的数据来源
//
// 各字段均可为 nil，对应的接口返回 404。
type Sources struct {
	// ErrorSummary 恢复管理器的错误统计
	ErrorSummary func() map[string]any
	// RecentErrors 最近处理的错误记录
	RecentErrors func(count int) []recovery.ErrorRecord
	// SessionStats 当前会话的运行统计
	SessionStats func() map[string]any
	// RecentBattles 最近的战斗历史
	RecentBattles func(count int) ([]store.BattleRow, error)
	// Metrics Prometheus 指标 handler
	Metrics http.Handler
}

// Server 本地状态服务器
// 暴露运行状态、错误历史与指标，仅监听本机地址。
type Server struct {
	config    *config.ServerConfig
	sources   Sources
	server    *http.Server
	hub       *Hub
	logger    *logrus.Entry
	running   bool
	startTime time.Time
	mutex     sync.RWMutex
}

// NewServer 创建状态服务器
func NewServer(cfg *config.ServerConfig, sources Sources, logger *logrus.Entry) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	s := &Server{
		config:  cfg,
		sources: sources,
		hub:     NewHub(logger),
		logger:  logger,
	}
	return s, nil
}

// Hub 返回事件推送中心，供其他组件广播事件
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler 构建全部路由
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	router.HandleFunc("/api/errors", s.handleErrors).Methods("GET")
	router.HandleFunc("/api/stats", s.handleStats).Methods("GET")
	router.HandleFunc("/api/battles", s.handleBattles).Methods("GET")
	router.HandleFunc("/ws", s.hub.HandleWebSocket)

	if s.sources.Metrics != nil {
		router.Handle("/metrics", s.sources.Metrics).Methods("GET")
	}

	return router
}

// Start 启动状态服务器
func (s *Server) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return fmt.Errorf("status server already running")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	// 在 goroutine 中启动服务器
	go func() {
		s.logger.WithField("addr", addr).Info("Status server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("Status server error")
		}
	}()

	s.running = true
	s.startTime = time.Now()
	return nil
}

// Stop 停止状态服务器
func (s *Server) Stop(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return nil
	}

	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down status server: %w", err)
	}

	s.running = false
	s.logger.Info("Status server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mutex.RLock()
	uptime := time.Since(s.startTime).Seconds()
	s.mutex.RUnlock()

	status := map[string]any{
		"uptime_seconds": uptime,
		"clients":        s.hub.ClientCount(),
	}
	if s.sources.ErrorSummary != nil {
		status["errors"] = s.sources.ErrorSummary()
	}
	s.writeJSON(w, status)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	if s.sources.RecentErrors == nil {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, s.sources.RecentErrors(queryCount(r, 20)))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.sources.SessionStats == nil {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, s.sources.SessionStats())
}

func (s *Server) handleBattles(w http.ResponseWriter, r *http.Request) {
	if s.sources.RecentBattles == nil {
		http.NotFound(w, r)
		return
	}

	battles, err := s.sources.RecentBattles(queryCount(r, 20))
	if err != nil {
		s.logger.WithError(err).Error("Failed to load battle history")
		http.Error(w, "failed to load battle history", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, battles)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// queryCount 解析 count 查询参数，非法值回退到默认值
func queryCount(r *http.Request, def int) int {
	raw := r.URL.Query().Get("count")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/devricklin/offline-responder/internal/biz/domain"
	"github.com/devricklin/offline-responder/internal/biz/repo"
)

// Controller is the responder surface exposed over HTTP
type Controller interface {
	Status() domain.Status
	SetOnline(ctx context.Context) (bool, error)
	SetOffline(ctx context.Context) (bool, error)
	Pending(limit int) []domain.PendingMessage
	PendingSummary(limit int) string
	ClearPending(ctx context.Context) (int, error)
}

// StatusResponse is returned by GET /api/status
type StatusResponse struct {
	State            string    `json:"state"`
	IsOffline        bool      `json:"is_offline"`
	OfflineStartedAt time.Time `json:"offline_started_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	OfflineSeconds   int64     `json:"offline_seconds"`
	PendingCount     int       `json:"pending_count"`
	RespondedUsers   int       `json:"responded_users"`
	Cursor           int64     `json:"cursor"`
}

// StateChangeResponse is returned by the online/offline endpoints
type StateChangeResponse struct {
	State   string `json:"state"`
	Changed bool   `json:"changed"`
}

// PendingResponse is returned by GET /api/pending
type PendingResponse struct {
	Total    int                     `json:"total"`
	Messages []domain.PendingMessage `json:"messages"`
	Summary  string                  `json:"summary"`
}

// ClearResponse is returned by DELETE /api/pending
type ClearResponse struct {
	Cleared int `json:"cleared"`
}

// HistoryResponse is returned by GET /api/history
type HistoryResponse struct {
	Entries []*domain.HistoryEntry `json:"entries"`
}

// Server is the local control API used by the CLI and the MCP bridge
type Server struct {
	local  *Local
	engine *gin.Engine
	server *http.Server
	port   int
	log    *zap.Logger
}

// NewServer creates a control API server. history may be nil.
func NewServer(controller Controller, history repo.HistoryRepo, port int, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		local: NewLocal(controller, history),
		port:  port,
		log:   log.Named("api"),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.handleHealth)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	g := r.Group("/api")
	{
		g.GET("/status", s.handleStatus)
		g.POST("/online", s.handleOnline)
		g.POST("/offline", s.handleOffline)
		g.GET("/pending", s.handlePending)
		g.DELETE("/pending", s.handleClearPending)
		g.GET("/history", s.handleHistory)
	}
	return r
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server in the background
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		s.log.Info("Control API listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Control API stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// GetPort returns the configured port
func (s *Server) GetPort() int {
	return s.port
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// ============ Handlers ============

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	resp, _ := s.local.Status(c.Request.Context())
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleOnline(c *gin.Context) {
	resp, err := s.local.SetOnline(c.Request.Context())
	if err != nil {
		s.log.Error("Failed to persist state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleOffline(c *gin.Context) {
	resp, err := s.local.SetOffline(c.Request.Context())
	if err != nil {
		s.log.Error("Failed to persist state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePending(c *gin.Context) {
	limit, ok := parseLimit(c, 10)
	if !ok {
		return
	}
	resp, _ := s.local.Pending(c.Request.Context(), limit)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleClearPending(c *gin.Context) {
	n, err := s.local.ClearPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ClearResponse{Cleared: n})
}

func (s *Server) handleHistory(c *gin.Context) {
	limit, ok := parseLimit(c, 20)
	if !ok {
		return
	}
	resp, err := s.local.History(c.Request.Context(), limit)
	switch {
	case errors.Is(err, ErrHistoryUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, resp)
	}
}

// parseLimit reads ?limit=, writing a 400 on bad input
func parseLimit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
		return 0, false
	}
	return n, true
}

func toStatusResponse(st domain.Status) StatusResponse {
	return StatusResponse{
		State:            st.StateName(),
		IsOffline:        st.IsOffline,
		OfflineStartedAt: st.OfflineStartedAt,
		LastActivityAt:   st.LastActivityAt,
		OfflineSeconds:   int64(st.OfflineFor / time.Second),
		PendingCount:     st.PendingCount,
		RespondedUsers:   st.RespondedUsers,
		Cursor:           st.Cursor,
	}
}

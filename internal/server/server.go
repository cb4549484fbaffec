// Package server exposes decode sessions over HTTP: a small REST API for
// status and the session journal, and a websocket endpoint that streams
// channel frames in and PCM out.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dbehnke/mbedecode/internal/database"
	"github.com/dbehnke/mbedecode/internal/driver"
	"github.com/dbehnke/mbedecode/internal/metrics"
	"github.com/dbehnke/mbedecode/internal/session"
)

// Config holds server configuration
type Config struct {
	Address        string
	Name           string
	AllowedOrigins []string
	MaxSessions    int
	MetricsPath    string // empty disables the endpoint
	Debug          bool
}

// Server serves the REST API and the decode websocket
type Server struct {
	config   Config
	driverID string
	device   driver.Device
	journal  *database.SessionRepository // nil when the database is disabled
	metrics  *metrics.Metrics            // nil when metrics are disabled
	logger   *log.Logger

	router     *gin.Engine
	upgrader   websocket.Upgrader
	httpServer *http.Server

	mu         sync.Mutex
	sessions   map[string]*liveSession
	isShutdown bool
	wg         sync.WaitGroup
}

// Option configures optional collaborators
type Option func(*Server)

// WithJournal records every session in repo
func WithJournal(repo *database.SessionRepository) Option {
	return func(s *Server) { s.journal = repo }
}

// WithMetrics exports counters through m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server for device, built by the driver named driverID
func New(config Config, driverID string, device driver.Device, opts ...Option) *Server {
	if config.MaxSessions <= 0 {
		config.MaxSessions = 64
	}

	s := &Server{
		config:   config,
		driverID: driverID,
		device:   device,
		logger:   log.Default(),
		sessions: make(map[string]*liveSession),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.setupRouter()

	return s
}

func (s *Server) setupRouter() *gin.Engine {
	if !s.config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestMetrics())
	if s.config.Debug {
		router.Use(gin.LoggerWithWriter(s.logger.Writer()))
	}
	router.Use(cors.New(s.corsConfig()))

	api := router.Group("/api/v1")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/codecs", s.handleCodecs)
		api.GET("/sessions", s.handleSessions)
		api.GET("/sessions/:id", s.handleSession)
		api.GET("/decode", s.handleDecode)
	}

	if s.metrics != nil && s.config.MetricsPath != "" {
		router.GET(s.config.MetricsPath, gin.WrapH(s.metrics.Handler()))
	}

	return router
}

func (s *Server) corsConfig() cors.Config {
	config := cors.DefaultConfig()
	config.AllowMethods = []string{"GET", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}

	if len(s.config.AllowedOrigins) == 0 || slices.Contains(s.config.AllowedOrigins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = s.config.AllowedOrigins
	}
	return config
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// non-browser clients
		return true
	}
	if len(s.config.AllowedOrigins) == 0 || slices.Contains(s.config.AllowedOrigins, "*") {
		return true
	}
	if slices.Contains(s.config.AllowedOrigins, origin) {
		return true
	}
	s.logger.Printf("Rejecting websocket from origin: %s", origin)
	return false
}

func (s *Server) requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if s.metrics == nil {
			return
		}
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler returns the HTTP handler, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown is called
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Printf("HTTP server listening on %s", s.config.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, ends every live session and waits
// for their connections to wind down
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.isShutdown = true
	srv := s.httpServer
	live := make([]*liveSession, 0, len(s.sessions))
	for _, ls := range s.sessions {
		live = append(live, ls)
	}
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	for _, ls := range live {
		ls.stop(database.END_REASON_SHUTDOWN)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Printf("Server stopped cleanly")
	case <-ctx.Done():
		return ctx.Err()
	}

	return err
}

// ActiveSessions returns the number of live sessions
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SessionInfo describes a live session in API responses
type SessionInfo struct {
	ID          string              `json:"id"`
	Mode        string              `json:"mode"`
	State       string              `json:"state"`
	RemoteAddr  string              `json:"remote_addr"`
	Synthesizer string              `json:"synthesizer"`
	Quality     int                 `json:"quality"`
	StartedAt   time.Time           `json:"started_at"`
	Framing     session.FramingHint `json:"framing"`
	Stats       session.Stats       `json:"stats"`
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	resp := gin.H{
		"status":   "ok",
		"name":     s.config.Name,
		"sessions": s.ActiveSessions(),
		"database": "disabled",
	}

	if s.journal != nil {
		if err := s.journal.HealthCheck(); err != nil {
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
			resp["database"] = err.Error()
		} else {
			resp["database"] = "ok"
		}
	}

	c.JSON(status, resp)
}

func (s *Server) handleCodecs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"driver":       s.driverID,
		"codecs":       s.device.Codecs(),
		"rate_indexes": session.RateIndexes(),
	})
}

func (s *Server) handleSessions(c *gin.Context) {
	s.mu.Lock()
	live := make([]SessionInfo, 0, len(s.sessions))
	for _, ls := range s.sessions {
		live = append(live, ls.info())
	}
	s.mu.Unlock()

	slices.SortFunc(live, func(a, b SessionInfo) int { return a.StartedAt.Compare(b.StartedAt) })

	resp := gin.H{"active": live}

	if s.journal != nil {
		limit := 50
		if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
		recent, err := s.journal.Recent(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp["recent"] = recent
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSession(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	ls, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		c.JSON(http.StatusOK, ls.info())
		return
	}

	if s.journal != nil {
		record, err := s.journal.GetByID(id)
		if err == nil {
			c.JSON(http.StatusOK, record)
			return
		}
		if !errors.Is(err, database.ErrSessionNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
}

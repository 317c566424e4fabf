// Package server exposes the local control API: library queries, import
// control, playback transport, playlists, and a websocket event stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/tuneport/tuneport/internal/config"
	"github.com/tuneport/tuneport/internal/events"
	"github.com/tuneport/tuneport/internal/library"
	"github.com/tuneport/tuneport/internal/modules/importmodule"
	"github.com/tuneport/tuneport/internal/modules/playbackmodule"
	"github.com/tuneport/tuneport/internal/store"
)

// Deps carries everything the API surfaces.
type Deps struct {
	Library   *library.State
	Tracks    *store.TrackStore
	Playlists *library.Playlists
	Pipeline  *importmodule.Pipeline
	Player    *playbackmodule.Engine
	Bus       events.EventBus
}

// Server is the HTTP control surface. It binds to localhost by default; the
// API carries no authentication and must not be exposed beyond the machine.
type Server struct {
	logger hclog.Logger
	cfg    *config.Config
	deps   Deps
	router *gin.Engine
	http   *http.Server

	// importState tracks the one import that may run at a time.
	importMu     sync.Mutex
	importCancel context.CancelFunc
	lastProgress *importmodule.Progress
	lastResult   *importmodule.Result
}

// New builds the server and its route table.
func New(cfg *config.Config, deps Deps, logger hclog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		logger: logger.Named("server"),
		cfg:    cfg,
		deps:   deps,
		router: gin.New(),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLog())
	s.router.Use(corsMiddleware())
	s.registerRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("control API listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops the listener and cancels any running import.
func (s *Server) Shutdown(ctx context.Context) error {
	s.importMu.Lock()
	if s.importCancel != nil {
		s.importCancel()
	}
	s.importMu.Unlock()
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// corsMiddleware allows the local UI, served from another port during
// development, to reach the API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Package httpapi is the gin server shell: route registration, the two
// native endpoints, the two OpenAI-compatible endpoints, verbatim
// passthrough of the remaining Ollama API surface, and the diagnostic
// routes (spec.md §6). It wires internal/orchestrator, never implements
// policy itself.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ngoclaw/ollamaguard/internal/admission"
	"github.com/ngoclaw/ollamaguard/internal/config"
	"github.com/ngoclaw/ollamaguard/internal/orchestrator"
	"github.com/ngoclaw/ollamaguard/internal/upstream"
)

// Server is the HTTP server shell around the gin engine.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// Deps bundles everything routes need beyond configuration.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Admission    *admission.Controller
	Upstream     *upstream.Client
	Config       *config.Config
	Logger       *zap.Logger
}

// NewServer builds the gin engine and registers every route in spec.md §6.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(deps.Logger))
	router.Use(corsMiddleware(deps.Config.CORSAllowOrigins))
	if len(deps.Config.TrustedHosts) > 0 {
		router.Use(trustedHostMiddleware(deps.Config.TrustedHosts))
	}

	h := &handlers{deps: deps}
	registerRoutes(router, h)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: router},
		logger:     deps.Logger,
	}
}

// Config is the httpapi server's own listen configuration.
type Config struct {
	Host string
	Port int
	Mode string // debug, release
}

// Start begins serving in the background.
func (s *Server) Start() {
	s.logger.Info("starting HTTP server", zap.String("address", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/health", h.health)
	router.GET("/config", h.configSnapshot)
	router.GET("/stats", h.stats)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/api/generate", h.nativeGenerate)
	router.POST("/api/chat", h.nativeChat)

	router.POST("/v1/chat/completions", h.openAIChatCompletions)
	router.POST("/v1/completions", h.openAICompletions)

	passthrough := []string{
		"/v1/embeddings", "/v1/models", "/api/embed", "/api/tags",
		"/api/show", "/api/delete", "/api/copy", "/api/pull", "/api/push",
		"/api/create", "/api/ps", "/api/version",
	}
	for _, path := range passthrough {
		router.Any(path, h.passthrough)
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[o] = true
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (allowAll || set[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func trustedHostMiddleware(trusted []string) gin.HandlerFunc {
	set := make(map[string]bool, len(trusted))
	for _, h := range trusted {
		set[h] = true
	}
	return func(c *gin.Context) {
		if !set[c.Request.Host] {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

func newRequestID() string {
	return uuid.NewString()
}

func nowUnix() int64 {
	return time.Now().Unix()
}

// Package http is the ingestion surface of the state server: agents and
// adapters POST sparse payloads here.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ga1ien/kulti-stream/internal/application/usecase"
	"github.com/ga1ien/kulti-stream/pkg/stream"
)

// Server is the HTTP ingestion server.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config configures the listener.
type Config struct {
	Host   string
	Port   int
	APIKey string // empty disables auth
	Mode   string // debug, release
}

// NewServer builds the ingestion server.
func NewServer(cfg Config, uc *usecase.StreamUseCase, logger *zap.Logger) *Server {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))
	router.Use(corsMiddleware())

	handler := &hookHandler{uc: uc, apiKey: cfg.APIKey, logger: logger}

	// The browser dashboard, legacy producers, and the SDK each grew up
	// POSTing to a different path; all three land on the same handler.
	for _, path := range []string{"/", "/state", "/hook"} {
		router.POST(path, handler.ingest)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"agents": uc.AgentCount(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		server: &http.Server{Addr: addr, Handler: router},
		logger: logger,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting ingestion server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Ingestion server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping ingestion server")
	return s.server.Shutdown(ctx)
}

type hookHandler struct {
	uc     *usecase.StreamUseCase
	apiKey string
	logger *zap.Logger
}

func (h *hookHandler) ingest(c *gin.Context) {
	if h.apiKey != "" && c.GetHeader("X-Kulti-Key") != h.apiKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var payload stream.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	h.uc.Ingest(&payload)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// corsMiddleware opens the server to any origin. The dashboard is a static
// page served from wherever; locking origins down is a deployment concern,
// handled in front of the server.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Kulti-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

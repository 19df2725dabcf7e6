// Package api exposes the turn engine over HTTP: a JSON turn endpoint with
// NDJSON event streaming, a WebSocket event channel, and a health probe.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parietal-ai/parietal/pkg/llm"
	"github.com/parietal-ai/parietal/pkg/turn"
)

// Server is the HTTP gateway in front of the turn engine.
type Server struct {
	engine   *turn.Engine
	provider llm.Provider
	// allowedWSOrigins are origin patterns accepted for WebSocket upgrades
	// besides the gateway's own host.
	allowedWSOrigins []string
	logger           *slog.Logger
}

// NewServer creates a Server.
func NewServer(engine *turn.Engine, provider llm.Provider, allowedWSOrigins []string) *Server {
	return &Server{
		engine:           engine,
		provider:         provider,
		allowedWSOrigins: allowedWSOrigins,
		logger:           slog.Default(),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.Health)
	router.POST("/api/turns", s.CreateTurn)
	router.GET("/ws", s.HandleWS)
	return router
}

// Health handles GET /healthz. The gateway is healthy even when the model
// backend is down; the probe reports the backend state separately.
func (s *Server) Health(c *gin.Context) {
	providerStatus := "ok"
	if err := s.provider.Ping(c.Request.Context()); err != nil {
		providerStatus = "unreachable"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"provider": providerStatus,
		"busy":     s.engine.Busy(),
	})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ptyhost/ptyhost/internal/metrics"
	"github.com/ptyhost/ptyhost/internal/session"
	"github.com/ptyhost/ptyhost/internal/ws"
)

// NewRouter wires the REST, WebSocket, health and metrics endpoints.
func NewRouter(sessionManager *session.Manager, wsService *ws.Service, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), corsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"active":      sessionManager.ActiveCount(),
			"maxSessions": sessionManager.MaxSessions(),
		})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := r.Group("/api")
	{
		NewSessionHandler(sessionManager).RegisterRoutes(api)
		NewWebSocketHandler(sessionManager, wsService).RegisterRoutes(api)
	}
	return r
}

// corsMiddleware allows browser clients on other origins.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

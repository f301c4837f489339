package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ptyhost/ptyhost/internal/session"
	"github.com/ptyhost/ptyhost/internal/ws"
)

// WebSocketHandler handles WebSocket connections for terminal sessions.
type WebSocketHandler struct {
	sessionManager *session.Manager
	wsService      *ws.Service
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(sessionManager *session.Manager, wsService *ws.Service) *WebSocketHandler {
	return &WebSocketHandler{
		sessionManager: sessionManager,
		wsService:      wsService,
	}
}

// Attach handles GET /api/sessions/:id/attach - attaches to a session via WebSocket.
// Sessions started by an earlier process have a record but no terminal.
func (h *WebSocketHandler) Attach(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	if _, live := h.sessionManager.GetContext(id); !live {
		if _, err := h.sessionManager.Get(c.Request.Context(), id); err != nil {
			sendSessionError(c, err)
			return
		}
		sendError(c, http.StatusConflict, "SESSION_CLOSED", "Session "+id+" has no attached terminal")
		return
	}

	if err := h.wsService.ServeSession(c.Writer, c.Request, id); err != nil {
		logrus.WithError(err).WithField("session", id).Debug("websocket upgrade failed")
	}
}

// RegisterRoutes registers the WebSocket handler routes on a Gin router group.
func (h *WebSocketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sessions/:id/attach", h.Attach)
}

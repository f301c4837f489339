// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ptyhost/ptyhost/internal/model"
	"github.com/ptyhost/ptyhost/internal/session"
)

// SessionHandler handles HTTP requests for session management.
type SessionHandler struct {
	sessionManager *session.Manager
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionManager *session.Manager) *SessionHandler {
	return &SessionHandler{
		sessionManager: sessionManager,
	}
}

// SessionResponse represents a session in API responses.
type SessionResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	File        string            `json:"file"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	WorkDir     string            `json:"workdir,omitempty"`
	Cols        int               `json:"cols"`
	Rows        int               `json:"rows"`
	Status      string            `json:"status"`
	ExitCode    *int              `json:"exitCode,omitempty"`
	ExitSignal  *int              `json:"exitSignal,omitempty"`
	PID         *int              `json:"pid,omitempty"`
	TTYName     string            `json:"ttyName,omitempty"`
	LogFilePath string            `json:"logFilePath"`
	Duration    string            `json:"duration"`
	CreatedAt   string            `json:"createdAt"`
	UpdatedAt   string            `json:"updatedAt"`
}

// toSessionResponse converts a model.Session to SessionResponse.
func toSessionResponse(s *model.Session) *SessionResponse {
	d := s.Duration()
	if s.Status.Terminal() {
		d = s.UpdatedAt.Sub(s.CreatedAt)
	}
	return &SessionResponse{
		ID:          s.ID,
		Name:        s.Name,
		File:        s.File,
		Args:        s.Args,
		Env:         s.Env,
		WorkDir:     s.WorkDir,
		Cols:        s.Cols,
		Rows:        s.Rows,
		Status:      string(s.Status),
		ExitCode:    s.ExitCode,
		ExitSignal:  s.ExitSignal,
		PID:         s.PID,
		TTYName:     s.TTYName,
		LogFilePath: s.LogFilePath,
		Duration:    formatDuration(d),
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   s.UpdatedAt.Format(time.RFC3339),
	}
}

// formatDuration formats a duration rounded to whole seconds.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}

// sessionID reads the :id parameter, answering 400 when it is empty.
func sessionID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if id == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Session ID is required")
		return "", false
	}
	return id, true
}

// Create handles POST /api/sessions - creates a new session.
func (h *SessionHandler) Create(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	sess, err := h.sessionManager.Create(c.Request.Context(), &req)
	if err != nil {
		sendSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSessionResponse(sess))
}

// List handles GET /api/sessions - lists all sessions, newest first.
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.sessionManager.List(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list sessions: "+err.Error())
		return
	}

	response := make([]*SessionResponse, len(sessions))
	for i, sess := range sessions {
		response[i] = toSessionResponse(sess)
	}
	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/sessions/:id - gets a specific session.
func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	sess, err := h.sessionManager.Get(c.Request.Context(), id)
	if err != nil {
		sendSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// Delete handles DELETE /api/sessions/:id - stops and deletes a session.
func (h *SessionHandler) Delete(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	if err := h.sessionManager.Delete(c.Request.Context(), id); err != nil {
		sendSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Input handles POST /api/sessions/:id/input - writes to the terminal.
// A short write is a success that reports partial: true.
func (h *SessionHandler) Input(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req model.InputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	n, err := h.sessionManager.Write(id, []byte(req.Data))
	if err != nil && !errors.Is(err, io.ErrShortWrite) {
		sendSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.InputResponse{Written: n, Partial: err != nil})
}

// Resize handles POST /api/sessions/:id/resize.
func (h *SessionHandler) Resize(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req model.ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	if err := h.sessionManager.Resize(id, req.Cols, req.Rows); err != nil {
		sendSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Signal handles POST /api/sessions/:id/signal.
func (h *SessionHandler) Signal(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req model.SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	sig, err := session.ParseSignal(req.Signal)
	if err != nil {
		sendSessionError(c, err)
		return
	}
	if err := h.sessionManager.Signal(id, sig); err != nil {
		sendSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Pause handles POST /api/sessions/:id/pause.
func (h *SessionHandler) Pause(c *gin.Context) {
	h.flowControl(c, h.sessionManager.Pause)
}

// Resume handles POST /api/sessions/:id/resume.
func (h *SessionHandler) Resume(c *gin.Context) {
	h.flowControl(c, h.sessionManager.Resume)
}

func (h *SessionHandler) flowControl(c *gin.Context, op func(id string) error) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := op(id); err != nil {
		sendSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetLogs handles GET /api/sessions/:id/logs - downloads the asciicast recording.
func (h *SessionHandler) GetLogs(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	sess, err := h.sessionManager.Get(c.Request.Context(), id)
	if err != nil {
		sendSessionError(c, err)
		return
	}

	if sess.LogFilePath == "" {
		sendError(c, http.StatusNotFound, "LOG_NOT_FOUND", "Log file not found for session "+id)
		return
	}
	if _, err := os.Stat(sess.LogFilePath); err != nil {
		sendError(c, http.StatusNotFound, "LOG_NOT_FOUND", "Log file not found for session "+id)
		return
	}

	c.Header("Content-Type", "application/x-asciicast")
	c.Header("Content-Disposition", "attachment; filename="+id+".cast")
	c.File(sess.LogFilePath)
}

// RegisterRoutes registers the session handler routes on a Gin router group.
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.Create)
		sessions.GET("", h.List)
		sessions.GET("/:id", h.Get)
		sessions.DELETE("/:id", h.Delete)
		sessions.POST("/:id/input", h.Input)
		sessions.POST("/:id/resize", h.Resize)
		sessions.POST("/:id/signal", h.Signal)
		sessions.POST("/:id/pause", h.Pause)
		sessions.POST("/:id/resume", h.Resume)
		sessions.GET("/:id/logs", h.GetLogs)
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ptyhost/ptyhost/internal/model"
	"github.com/ptyhost/ptyhost/internal/pty"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// classify maps a manager or terminal error to a status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, model.ErrConcurrencyLimit):
		return http.StatusTooManyRequests, "LIMIT_EXCEEDED"
	case errors.Is(err, model.ErrCommandRequired),
		errors.Is(err, model.ErrInvalidSize),
		errors.Is(err, model.ErrInvalidSignal),
		errors.Is(err, pty.ErrInvalidArgument):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, pty.ErrResourceUnavailable):
		return http.StatusConflict, "SESSION_CLOSED"
	case errors.Is(err, pty.ErrSpawnFailed), errors.Is(err, pty.ErrShellNotFound):
		return http.StatusUnprocessableEntity, "SPAWN_FAILED"
	case errors.Is(err, pty.ErrAllocationFailed):
		return http.StatusServiceUnavailable, "ALLOCATION_FAILED"
	case errors.Is(err, pty.ErrIoFailed):
		return http.StatusInternalServerError, "IO_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// sendSessionError reports err with its mapped status. Terminal errors
// carry their kind, reason and errno as details.
func sendSessionError(c *gin.Context, err error) {
	status, code := classify(err)
	detail := ErrorDetail{Code: code, Message: err.Error()}

	var pe *pty.Error
	if errors.As(err, &pe) {
		detail.Details = map[string]interface{}{"kind": string(pe.Kind)}
		if pe.Reason != "" {
			detail.Details["reason"] = string(pe.Reason)
		}
		if errno := pty.Errno(err); errno != 0 {
			detail.Details["errno"] = int(errno)
		}
	}
	c.JSON(status, ErrorResponse{Error: detail})
}

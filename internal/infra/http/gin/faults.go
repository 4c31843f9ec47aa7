package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"vinci/internal/domain/shared/fault"
)

// respondFault maps the engine's error taxonomy onto HTTP statuses. Untyped
// errors stay opaque to the caller.
func respondFault(c *gin.Context, logger *slog.Logger, err error, action string, attrs ...any) {
	if logger != nil {
		logger.Error("request failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	switch fault.CodeOf(err) {
	case fault.CodeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case fault.CodeForbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case fault.CodeValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case fault.CodeInvalidState:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case fault.CodeConflict:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

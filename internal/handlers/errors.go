package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PratikDhanave/invite-rsvp-service/internal/apperr"
)

// writeError maps a service error to its HTTP status. Persistence and
// untyped errors are logged and answered with a generic message.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		logger.Error("unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	switch e.Kind {
	case apperr.KindValidation:
		body := gin.H{"error": e.Message}
		if e.MaxAllowed > 0 {
			body["maxAllowedAttendees"] = e.MaxAllowed
		}
		c.JSON(http.StatusBadRequest, body)
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": e.Message})
	case apperr.KindUnauthorized:
		c.Header("WWW-Authenticate", `Bearer realm="rsvp-host"`)
		c.JSON(http.StatusUnauthorized, gin.H{"error": e.Message})
	case apperr.KindRateLimited:
		c.JSON(http.StatusTooManyRequests, gin.H{"error": e.Message})
	default:
		logger.Error("store failure", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db operation failed"})
	}
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return false
	}
	return true
}

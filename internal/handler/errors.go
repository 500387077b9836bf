package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nyumbani/smartsearch/internal/logger"
	"github.com/nyumbani/smartsearch/internal/model"
)

const msgUnavailable = "search temporarily unavailable"

// statusFor maps service errors to HTTP status codes and client-safe messages
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrProviderUnavailable), errors.Is(err, model.ErrInvalidIntent):
		return http.StatusServiceUnavailable, msgUnavailable
	case errors.Is(err, model.ErrListingNotFound):
		return http.StatusNotFound, "Listing not found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request cancelled"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// logError logs err at a level matching its mapped status
func logError(c *gin.Context, op string, err error) (int, string) {
	status, msg := statusFor(err)
	log := logger.FromContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error(op+" failed", zap.Error(err), zap.Int("status", status))
	} else {
		log.Info(op+" failed", zap.Error(err), zap.Int("status", status))
	}
	return status, msg
}

// respondError logs err and writes the mapped status
func respondError(c *gin.Context, op string, err error) {
	status, msg := logError(c, op, err)
	c.JSON(status, gin.H{"success": false, "error": msg})
}

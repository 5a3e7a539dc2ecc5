// Package middleware provides HTTP middleware for the admin API
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/openidx/ciam-console/internal/common/errors"
)

// RequestIDHeader carries the correlation id in both directions
const RequestIDHeader = "X-Request-ID"

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// Recovery returns a middleware that recovers from panics and answers with
// the standard error body
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				requestID, _ := c.Get("request_id")
				logger.Error("Panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
					zap.Any("request_id", requestID))

				reqID, _ := requestID.(string)
				c.AbortWithStatusJSON(http.StatusInternalServerError, apperrors.ErrorResponse{
					Error:     apperrors.ErrInternal,
					Message:   "internal server error",
					RequestID: reqID,
				})
			}
		}()
		c.Next()
	}
}

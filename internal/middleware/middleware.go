package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/campus-events/internal/models"
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		requestID, _ := c.Get("request_id")
		attrs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if userID, ok := c.Get("user_id"); ok {
			attrs = append(attrs, "user_id", userID)
		}
		logger.Info("HTTP Request", attrs...)
	}
}

// StatusFor maps an error kind to the HTTP status returned to clients.
func StatusFor(kind models.Kind) int {
	switch kind {
	case models.KindValidation, models.KindDuplicateEmail, models.KindInvalidCredentials, models.KindConflict:
		return http.StatusBadRequest
	case models.KindUnauthorized:
		return http.StatusUnauthorized
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler provides centralized error handling. Handlers attach errors
// with c.Error and return without writing a body.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		requestID, _ := c.Get("request_id")
		kind := models.KindOf(err)
		status := StatusFor(kind)

		if status >= http.StatusInternalServerError {
			logger.Error("Request error",
				"request_id", requestID,
				"error", err.Error(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
		} else {
			logger.Debug("Request rejected",
				"request_id", requestID,
				"kind", string(kind),
				"error", err.Error(),
				"path", c.Request.URL.Path,
			)
		}

		if c.Writer.Written() {
			return
		}

		message := err.Error()
		if status >= http.StatusInternalServerError {
			// Don't return error details
			message = "Internal server error"
		}
		c.JSON(status, gin.H{
			"error":      message,
			"request_id": requestID,
		})
	}
}

package snshttp

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/slackmgr/types"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "requestID"
)

// RequestID injects a unique request ID into every request context and response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// AccessLog logs one line per request at debug level, info for 4xx and error
// for 5xx responses.
func AccessLog(logger types.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()

		l := logger.WithFields(map[string]any{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     status,
			"elapsed":    time.Since(start).String(),
			"request_id": c.GetString(requestIDKey),
		})

		switch {
		case status >= 500:
			l.Error("HTTP request failed")
		case status >= 400:
			l.Info("HTTP request rejected")
		default:
			l.Debug("HTTP request served")
		}
	}
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"docchat/internal/pkg/logger"
)

// RequestLogger writes one line per request; 5xx responses log at error level.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		details := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			details["errors"] = c.Errors.String()
		}
		switch {
		case status >= 500:
			log.Error("http", "request failed", details)
		case status >= 400:
			log.Warn("http", "request rejected", details)
		default:
			log.Info("http", "request served", details)
		}
	}
}

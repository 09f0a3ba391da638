package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pantrychef/internal/logging"
)

// RequestLogger logs every request with method, path, status and latency.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= 500:
			logging.Error("request failed", fields...)
		case status >= 400:
			logging.Warn("client error", fields...)
		default:
			logging.Info("request completed", fields...)
		}
	}
}

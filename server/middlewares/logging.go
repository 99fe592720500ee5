package middlewares

import (
	"time"

	gin "github.com/gin-gonic/gin"
	zap "go.uber.org/zap"
)

// LoggingMiddleware logs each completed request with structured fields.
// Health check requests can be excluded to keep probe noise out of the logs.
func LoggingMiddleware(logger *zap.Logger, disableHealthcheckLog bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if disableHealthcheckLog && c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

package middlewares

import (
	"time"

	config "github.com/agentwire/a2a/server/config"
	otel "github.com/agentwire/a2a/server/otel"
	gin "github.com/gin-gonic/gin"
	zap "go.uber.org/zap"
)

// Telemetry records request metrics for protocol endpoints
type Telemetry interface {
	Middleware() gin.HandlerFunc
}

// TelemetryImpl implements the Telemetry middleware
type TelemetryImpl struct {
	cfg       config.TelemetryConfig
	telemetry otel.OpenTelemetry
	logger    *zap.Logger
}

// NewTelemetryMiddleware creates a new telemetry middleware
func NewTelemetryMiddleware(cfg config.TelemetryConfig, telemetry otel.OpenTelemetry, logger *zap.Logger) Telemetry {
	return &TelemetryImpl{
		cfg:       cfg,
		telemetry: telemetry,
		logger:    logger,
	}
}

// Middleware records count, status and duration for every request
func (t *TelemetryImpl) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.cfg.Enable {
			c.Next()
			return
		}

		startTime := time.Now()

		t.telemetry.RecordRequestCount(c.Request.Context(), c.Request.Method)

		c.Next()

		duration := time.Since(startTime)
		durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)
		statusCode := c.Writer.Status()

		t.telemetry.RecordResponseStatus(
			c.Request.Context(),
			c.Request.Method,
			c.Request.URL.Path,
			statusCode,
		)

		t.telemetry.RecordRequestDuration(
			c.Request.Context(),
			c.Request.Method,
			c.Request.URL.Path,
			durationMs,
		)

		t.logger.Debug("request telemetry recorded",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status_code", statusCode),
			zap.Float64("duration_ms", durationMs),
		)
	}
}

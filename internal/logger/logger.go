// Package logger configures zap and provides gin middleware that tags every
// request with a correlation id.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CorrelationIDHeader carries the request correlation id in and out.
const CorrelationIDHeader = "X-Correlation-ID"

const correlationIDKey = "correlationID"

// Init builds a logger from LOG_LEVEL (debug|info|warn|error) and
// LOG_FORMAT (json|console).
func Init() (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if raw, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if err := level.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
			level = zapcore.InfoLevel
		}
	}

	var cfg zap.Config
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

// Middleware assigns a correlation id to the request and logs its outcome.
func Middleware(logs ...*zap.Logger) gin.HandlerFunc {
	log := zap.NewNop()
	if len(logs) > 0 && logs[0] != nil {
		log = logs[0]
	}

	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(CorrelationIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(correlationIDKey, id)
		c.Header(CorrelationIDHeader, id)

		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("correlation_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// CorrelationID returns the id assigned by Middleware, or "".
func CorrelationID(c *gin.Context) string {
	return c.GetString(correlationIDKey)
}

// FromGin returns log enriched with the request correlation id.
func FromGin(c *gin.Context, log *zap.Logger) *zap.Logger {
	if id := CorrelationID(c); id != "" {
		return log.With(zap.String("correlation_id", id))
	}
	return log
}

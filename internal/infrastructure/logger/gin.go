package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ginLoggerKey = "logger"

// GinMiddleware logs every request and binds a request-scoped logger
// into both the gin context and the request context, so handlers and
// the gorm logger see the same request ID.
func GinMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		reqLogger := logger
		if requestID := c.GetString("request_id"); requestID != "" {
			ctx, enriched := WithRequestID(c.Request.Context(), logger, requestID)
			c.Request = c.Request.WithContext(ctx)
			reqLogger = enriched
		}
		reqLogger = reqLogger.With(
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		)
		c.Set(ginLoggerKey, reqLogger)

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			reqLogger.Error("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn("HTTP Request", fields...)
		default:
			reqLogger.Info("HTTP Request", fields...)
		}
	}
}

// Recovery returns a gin middleware that recovers from panics and logs them
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.String("request_id", GetRequestID(c.Request.Context())),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)

				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// GetGinLogger retrieves the request-scoped logger from the gin context
func GetGinLogger(c *gin.Context) *zap.Logger {
	if logger, exists := c.Get(ginLoggerKey); exists {
		if l, ok := logger.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}

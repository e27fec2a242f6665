package logger

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the enriched logger
	LoggerKey contextKey = "logger"
	// RequestIDKey correlates everything done on behalf of one HTTP request
	RequestIDKey contextKey = "request_id"
	// TenantIDKey correlates everything done inside one tenant's collection walk
	TenantIDKey contextKey = "tenant_id"
)

// WithContext returns a new context carrying the logger
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, a no-op logger if not set
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID binds the request ID into the context and returns a
// logger enriched with it. The gin middleware calls this once per
// request; the gorm logger reads the ID back on every query.
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	enriched := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enriched), enriched
}

// WithTenantID binds the tenant ID into the context and returns a
// logger enriched with it. The collector calls this at the start of
// every tenant's walk.
func WithTenantID(ctx context.Context, logger *zap.Logger, tenantID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	enriched := logger.With(zap.String("tenant_id", tenantID))
	return WithContext(ctx, enriched), enriched
}

// GetRequestID retrieves the request ID, empty when not set
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetTenantID retrieves the tenant ID, empty when not set
func GetTenantID(ctx context.Context) string {
	if tenantID, ok := ctx.Value(TenantIDKey).(string); ok {
		return tenantID
	}
	return ""
}

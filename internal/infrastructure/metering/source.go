// Package metering provides the adapter for the external metering
// source the collector pulls raw samples from.
package metering

import (
	"context"
	"time"

	domain "github.com/cloudbill/backend/internal/domain/metering"
)

// Source is the external metering service consumed by the collector.
// Sample ordering is not guaranteed by the source; callers must sort.
type Source interface {
	// GetUsage fetches raw samples for one meter of one resource scope
	// over [start, end]. limit <= 0 means no limit.
	GetUsage(ctx context.Context, scopeID, meterName string, start, end time.Time, limit int) ([]domain.RawSample, error)
}

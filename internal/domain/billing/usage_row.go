package billing

import (
	"context"
	"time"

	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UsageRow is one persisted billable quantity for one resource within
// one hour window. Rows are immutable after insertion; corrections are
// made with new rows, never updates. Uniqueness key:
// (ScopeID, ServiceID, Label, ResourceID).
type UsageRow struct {
	shared.BaseEntity
	TenantID     uuid.UUID
	ScopeID      string
	ServiceID    metering.ServiceID
	ResourceID   string
	ResourceName string
	Label        metering.TimeLabel
	Volume       decimal.Decimal
	Cost         decimal.Decimal
	Start        time.Time
	End          time.Time
}

// NewUsageRow creates a usage row from a transformer's output
func NewUsageRow(tenantID uuid.UUID, scopeID, resourceID string, label metering.TimeLabel, usage metering.Usage, cost decimal.Decimal) (*UsageRow, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if resourceID == "" {
		return nil, shared.NewDomainError("INVALID_RESOURCE", "Resource ID cannot be empty")
	}
	if label.IsZero() {
		return nil, shared.NewDomainError("INVALID_LABEL", "Time label cannot be empty")
	}
	if usage.End.Before(usage.Start) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Usage end cannot be before usage start")
	}

	return &UsageRow{
		BaseEntity:   shared.NewBaseEntity(),
		TenantID:     tenantID,
		ScopeID:      scopeID,
		ServiceID:    usage.ServiceID,
		ResourceID:   resourceID,
		ResourceName: usage.ResourceName,
		Label:        label,
		Volume:       usage.Volume,
		Cost:         cost,
		Start:        usage.Start,
		End:          usage.End,
	}, nil
}

// TimeUsage returns the row's covered span in whole seconds
func (r *UsageRow) TimeUsage() int64 {
	return int64(r.End.Sub(r.Start) / time.Second)
}

// UsageRowRepository persists and reads back usage rows. Rows are
// written by the collector inside its hour transaction and read by the
// report aggregator; they are never mutated after insertion.
type UsageRowRepository interface {
	Save(ctx context.Context, row *UsageRow) error
	FindForPeriod(ctx context.Context, scopeID string, from, to metering.TimeLabel) ([]UsageRow, error)
}

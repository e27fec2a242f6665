package models

import (
	"time"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UsageRowModel is the persistence model for one hour window's billable
// usage of one resource. The composite unique index is the natural key
// the aggregation side depends on.
type UsageRowModel struct {
	BaseModel
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ScopeID      string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_usage_scope_service_label_resource,priority:1"`
	ServiceID    string          `gorm:"type:varchar(200);not null;uniqueIndex:idx_usage_scope_service_label_resource,priority:2"`
	Label        string          `gorm:"type:char(10);not null;uniqueIndex:idx_usage_scope_service_label_resource,priority:3;index"`
	ResourceID   string          `gorm:"type:varchar(200);not null;uniqueIndex:idx_usage_scope_service_label_resource,priority:4"`
	ResourceName string          `gorm:"type:varchar(200)"`
	Volume       decimal.Decimal `gorm:"type:decimal(30,10);not null"`
	Cost         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Start        time.Time       `gorm:"not null"`
	End          time.Time       `gorm:"column:end_time;not null"`
}

// TableName returns the table name for GORM
func (UsageRowModel) TableName() string {
	return "usage_rows"
}

// ToDomain converts the persistence model to a domain UsageRow
func (m *UsageRowModel) ToDomain() (*billing.UsageRow, error) {
	label, err := metering.LabelFromCanonical(m.Label)
	if err != nil {
		return nil, err
	}
	return &billing.UsageRow{
		BaseEntity:   m.BaseModel.ToDomain(),
		TenantID:     m.TenantID,
		ScopeID:      m.ScopeID,
		ServiceID:    metering.ServiceID(m.ServiceID),
		ResourceID:   m.ResourceID,
		ResourceName: m.ResourceName,
		Label:        label,
		Volume:       m.Volume,
		Cost:         m.Cost,
		Start:        m.Start,
		End:          m.End,
	}, nil
}

// FromDomain populates the persistence model from a domain UsageRow
func (m *UsageRowModel) FromDomain(r *billing.UsageRow) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.TenantID = r.TenantID
	m.ScopeID = r.ScopeID
	m.ServiceID = string(r.ServiceID)
	m.Label = r.Label.Key()
	m.ResourceID = r.ResourceID
	m.ResourceName = r.ResourceName
	m.Volume = r.Volume
	m.Cost = r.Cost
	m.Start = r.Start
	m.End = r.End
}

package models

import (
	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/domain/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceModel is the persistence model for a pricing catalog entry.
type ServiceModel struct {
	BaseModel
	ServiceID   string              `gorm:"type:varchar(200);not null;uniqueIndex"`
	Name        string              `gorm:"type:varchar(200);not null;uniqueIndex"`
	Description string              `gorm:"type:text"`
	Kind        pricing.ServiceKind `gorm:"type:varchar(20);not null;default:'duration'"`
	// VolumeType marks catalog entries that storage metering resolves
	// volume-type names against.
	VolumeType bool `gorm:"not null;default:false;index"`
}

// TableName returns the table name for GORM
func (ServiceModel) TableName() string {
	return "services"
}

// ToDomain converts the persistence model to a domain Service
func (m *ServiceModel) ToDomain() *pricing.Service {
	return &pricing.Service{
		BaseEntity:  m.BaseModel.ToDomain(),
		ServiceID:   metering.ServiceID(m.ServiceID),
		Name:        m.Name,
		Description: m.Description,
		Kind:        m.Kind,
	}
}

// FromDomain populates the persistence model from a domain Service
func (m *ServiceModel) FromDomain(s *pricing.Service) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.ServiceID = string(s.ServiceID)
	m.Name = s.Name
	m.Description = s.Description
	m.Kind = s.Kind
}

// PriceModel is the persistence model for one service's per-unit price
// under one tariff.
type PriceModel struct {
	BaseModel
	ServiceID string          `gorm:"type:varchar(200);not null;uniqueIndex:idx_price_service_tariff,priority:1"`
	TariffID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_price_service_tariff,priority:2"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Currency  string          `gorm:"type:varchar(10);not null"`
}

// TableName returns the table name for GORM
func (PriceModel) TableName() string {
	return "prices"
}

// ToDomain converts the persistence model to a domain Price
func (m *PriceModel) ToDomain() pricing.Price {
	return pricing.Price{
		ServiceID: metering.ServiceID(m.ServiceID),
		TariffID:  m.TariffID,
		Amount:    m.Amount,
		Currency:  m.Currency,
	}
}

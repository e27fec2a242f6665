package models

import (
	"time"

	"github.com/cloudbill/backend/internal/domain/identity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TenantModel is the persistence model for the Tenant domain entity.
type TenantModel struct {
	BaseModel
	Name          string                `gorm:"type:varchar(200);not null"`
	ScopeID       string                `gorm:"type:varchar(100);not null;uniqueIndex"`
	TariffID      uuid.UUID             `gorm:"type:uuid;not null"`
	Status        identity.TenantStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	Currency      string                `gorm:"type:varchar(10);not null"`
	Balance       decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	LastCollected time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the persistence model to a domain Tenant
func (m *TenantModel) ToDomain() *identity.Tenant {
	return &identity.Tenant{
		BaseEntity:    m.BaseModel.ToDomain(),
		Name:          m.Name,
		ScopeID:       m.ScopeID,
		TariffID:      m.TariffID,
		Status:        m.Status,
		Currency:      m.Currency,
		Balance:       m.Balance,
		LastCollected: m.LastCollected,
	}
}

// FromDomain populates the persistence model from a domain Tenant
func (m *TenantModel) FromDomain(t *identity.Tenant) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.Name = t.Name
	m.ScopeID = t.ScopeID
	m.TariffID = t.TariffID
	m.Status = t.Status
	m.Currency = t.Currency
	m.Balance = t.Balance
	m.LastCollected = t.LastCollected
}

package identity

import (
	"context"
	"strings"
	"time"

	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TenantStatus represents the status of a tenant
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusInactive  TenantStatus = "inactive"
	TenantStatusSuspended TenantStatus = "suspended" // Suspended due to payment issues
)

// Tenant is the billed entity whose resource usage is collected.
// Each tenant owns exactly one collection cursor and one mutex name.
type Tenant struct {
	shared.BaseEntity
	Name     string
	ScopeID  string // Identifier of the tenant's resource scope at the metering source
	TariffID uuid.UUID
	Status   TenantStatus
	Currency string
	Balance  decimal.Decimal
	// LastCollected is the high-water mark of usage collection. It is
	// advanced only after a window's usage has been durably persisted
	// and the balance charged, never past a window that failed to commit.
	LastCollected time.Time
}

// NewTenant creates a new active tenant
func NewTenant(name, scopeID string, tariffID uuid.UUID, currency string) (*Tenant, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Tenant name cannot be empty")
	}
	if strings.TrimSpace(scopeID) == "" {
		return nil, shared.NewDomainError("INVALID_SCOPE", "Tenant scope ID cannot be empty")
	}
	if tariffID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TARIFF", "Tariff ID cannot be empty")
	}

	return &Tenant{
		BaseEntity:    shared.NewBaseEntity(),
		Name:          name,
		ScopeID:       scopeID,
		TariffID:      tariffID,
		Status:        TenantStatusActive,
		Currency:      currency,
		Balance:       decimal.Zero,
		LastCollected: time.Now().UTC().Truncate(time.Hour),
	}, nil
}

// IsActive reports whether the tenant is eligible for collection
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// MutexName returns the lock-store key serializing this tenant's collection
func (t *Tenant) MutexName() string {
	return "collect:tenant:" + t.ID.String()
}

// TenantRepository defines storage operations the collection pipeline
// needs. AdvanceCursor and ChargeBalance are always called inside the
// same transaction as the usage rows of the hour being committed.
type TenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	FindActive(ctx context.Context) ([]Tenant, error)
	Save(ctx context.Context, tenant *Tenant) error

	// AdvanceCursor moves the tenant's last_collected forward. The new
	// value must be later than the stored one; going backward is a
	// programming error.
	AdvanceCursor(ctx context.Context, tenantID uuid.UUID, to time.Time) error

	// ChargeBalance debits the tenant's account by amount in the given currency.
	ChargeBalance(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal, currency string) error
}

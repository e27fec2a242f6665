package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cloudbill/backend/internal/domain/identity"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormTenantRepository implements identity.TenantRepository using GORM
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GormTenantRepository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// FindByID finds a tenant by ID
func (r *GormTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	var model models.TenantModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive returns all tenants eligible for collection
func (r *GormTenantRepository) FindActive(ctx context.Context) ([]identity.Tenant, error) {
	var tenantModels []models.TenantModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", identity.TenantStatusActive).
		Order("created_at ASC").
		Find(&tenantModels).Error; err != nil {
		return nil, err
	}

	tenants := make([]identity.Tenant, len(tenantModels))
	for i, model := range tenantModels {
		tenants[i] = *model.ToDomain()
	}
	return tenants, nil
}

// Save creates or updates a tenant
func (r *GormTenantRepository) Save(ctx context.Context, tenant *identity.Tenant) error {
	var model models.TenantModel
	model.FromDomain(tenant)
	model.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(&model).Error
}

// AdvanceCursor moves the tenant's last_collected high-water mark
// forward. The guard in the WHERE clause makes a backward move a no-op
// that surfaces as a conflict instead of corrupting the cursor.
func (r *GormTenantRepository) AdvanceCursor(ctx context.Context, tenantID uuid.UUID, to time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.TenantModel{}).
		Where("id = ? AND last_collected < ?", tenantID, to).
		Updates(map[string]any{
			"last_collected": to,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// ChargeBalance debits the tenant's account. The currency guard keeps a
// misconfigured tariff from charging in the wrong currency.
func (r *GormTenantRepository) ChargeBalance(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal, currency string) error {
	result := r.db.WithContext(ctx).
		Model(&models.TenantModel{}).
		Where("id = ? AND currency = ?", tenantID, currency).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormTenantRepository implements TenantRepository
var _ identity.TenantRepository = (*GormTenantRepository)(nil)

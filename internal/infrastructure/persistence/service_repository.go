package persistence

import (
	"context"
	"errors"

	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/domain/pricing"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormServiceRepository implements pricing.ServiceRepository using GORM
type GormServiceRepository struct {
	db *gorm.DB
}

// NewGormServiceRepository creates a new GormServiceRepository
func NewGormServiceRepository(db *gorm.DB) *GormServiceRepository {
	return &GormServiceRepository{db: db}
}

// PriceOf looks up the per-unit price of a service under a tariff
func (r *GormServiceRepository) PriceOf(ctx context.Context, serviceID metering.ServiceID, tariffID uuid.UUID) (decimal.Decimal, error) {
	var model models.PriceModel
	if err := r.db.WithContext(ctx).
		Where("service_id = ? AND tariff_id = ?", string(serviceID), tariffID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, shared.ErrNotFound
		}
		return decimal.Zero, err
	}
	return model.Amount, nil
}

// FindByName finds a catalog entry by service name
func (r *GormServiceRepository) FindByName(ctx context.Context, name string) (*pricing.Service, error) {
	var model models.ServiceModel
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// RegisterFixed creates a duration-billed catalog entry for an unknown
// name. ON CONFLICT DO NOTHING plus the re-read makes the registration
// idempotent across concurrent collectors.
func (r *GormServiceRepository) RegisterFixed(ctx context.Context, name string) (*pricing.Service, error) {
	svc, err := pricing.NewService(name, pricing.ServiceKindDuration)
	if err != nil {
		return nil, err
	}

	var model models.ServiceModel
	model.FromDomain(svc)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&model).Error; err != nil {
		return nil, err
	}

	return r.FindByName(ctx, name)
}

// VolumeTypes returns the volume-type name to service ID mapping
func (r *GormServiceRepository) VolumeTypes(ctx context.Context) (map[string]metering.ServiceID, error) {
	var serviceModels []models.ServiceModel
	if err := r.db.WithContext(ctx).
		Where("volume_type = ?", true).
		Find(&serviceModels).Error; err != nil {
		return nil, err
	}

	types := make(map[string]metering.ServiceID, len(serviceModels))
	for i := range serviceModels {
		types[serviceModels[i].Name] = metering.ServiceID(serviceModels[i].ServiceID)
	}
	return types, nil
}

// FindKinds returns every service's billing kind, used by the report
// aggregator to decide which services merge into intervals.
func (r *GormServiceRepository) FindKinds(ctx context.Context) (map[metering.ServiceID]pricing.ServiceKind, error) {
	var serviceModels []models.ServiceModel
	if err := r.db.WithContext(ctx).Find(&serviceModels).Error; err != nil {
		return nil, err
	}

	kinds := make(map[metering.ServiceID]pricing.ServiceKind, len(serviceModels))
	for i := range serviceModels {
		kinds[metering.ServiceID(serviceModels[i].ServiceID)] = serviceModels[i].Kind
	}
	return kinds, nil
}

// Ensure GormServiceRepository implements ServiceRepository
var _ pricing.ServiceRepository = (*GormServiceRepository)(nil)

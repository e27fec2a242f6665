package persistence

import (
	"context"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormUsageRowRepository implements billing.UsageRowRepository using GORM
type GormUsageRowRepository struct {
	db *gorm.DB
}

// NewGormUsageRowRepository creates a new GormUsageRowRepository
func NewGormUsageRowRepository(db *gorm.DB) *GormUsageRowRepository {
	return &GormUsageRowRepository{db: db}
}

// Save persists a usage row. Rows are append-only; the unique index on
// (scope, service, label, resource) rejects double collection.
func (r *GormUsageRowRepository) Save(ctx context.Context, row *billing.UsageRow) error {
	var model models.UsageRowModel
	model.FromDomain(row)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindForPeriod returns all rows of a resource scope whose label falls
// in [from, to] inclusive, ordered by label then resource.
func (r *GormUsageRowRepository) FindForPeriod(ctx context.Context, scopeID string, from, to metering.TimeLabel) ([]billing.UsageRow, error) {
	var rowModels []models.UsageRowModel
	if err := r.db.WithContext(ctx).
		Where("scope_id = ? AND label >= ? AND label <= ?", scopeID, from.Key(), to.Key()).
		Order("label ASC, resource_id ASC").
		Find(&rowModels).Error; err != nil {
		return nil, err
	}

	rows := make([]billing.UsageRow, 0, len(rowModels))
	for i := range rowModels {
		row, err := rowModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		rows = append(rows, *row)
	}
	return rows, nil
}

// Ensure GormUsageRowRepository implements UsageRowRepository
var _ billing.UsageRowRepository = (*GormUsageRowRepository)(nil)

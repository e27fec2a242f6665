package persistence

import (
	"context"

	"github.com/cloudbill/backend/internal/application/collect"
	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/identity"
	"gorm.io/gorm"
)

// GormCollectScope implements collect.TransactionScope over a GORM
// transaction. Every hour commit of the collector runs through here.
type GormCollectScope struct {
	db *gorm.DB
}

// NewGormCollectScope creates a transaction scope over the database
func NewGormCollectScope(db *gorm.DB) *GormCollectScope {
	return &GormCollectScope{db: db}
}

// Execute runs fn inside one database transaction
func (s *GormCollectScope) Execute(ctx context.Context, fn func(repos collect.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormCollectRepositories{tx: tx})
	})
}

// gormCollectRepositories provides repositories bound to one transaction
type gormCollectRepositories struct {
	tx *gorm.DB
}

func (r *gormCollectRepositories) Tenants() identity.TenantRepository {
	return NewGormTenantRepository(r.tx)
}

func (r *gormCollectRepositories) UsageRows() billing.UsageRowRepository {
	return NewGormUsageRowRepository(r.tx)
}

var _ collect.TransactionScope = (*GormCollectScope)(nil)

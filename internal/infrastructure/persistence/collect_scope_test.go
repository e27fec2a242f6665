package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudbill/backend/internal/application/collect"
	"github.com/cloudbill/backend/internal/domain/identity"
	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCollectScopeTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.TenantModel{}, &models.UsageRowModel{})
	require.NoError(t, err)

	return db
}

func TestGormCollectScope_Execute(t *testing.T) {
	ctx := context.Background()

	newTenant := func(t *testing.T, db *gorm.DB) *identity.Tenant {
		tenant, err := identity.NewTenant("acme", "scope-acme", uuid.New(), "EUR")
		require.NoError(t, err)
		require.NoError(t, NewGormTenantRepository(db).Save(ctx, tenant))
		return tenant
	}

	t.Run("commits row, charge and cursor together", func(t *testing.T) {
		db := setupCollectScopeTestDB(t)
		scope := NewGormCollectScope(db)
		tenant := newTenant(t, db)
		row := newTestRow(t, tenant.ScopeID, "vm-1", "compute.small", "2026031510")
		cursor := tenant.LastCollected.Add(time.Hour - time.Second)

		err := scope.Execute(ctx, func(repos collect.TransactionalRepositories) error {
			if err := repos.UsageRows().Save(ctx, row); err != nil {
				return err
			}
			if err := repos.Tenants().ChargeBalance(ctx, tenant.ID, decimal.NewFromInt(1), "EUR"); err != nil {
				return err
			}
			return repos.Tenants().AdvanceCursor(ctx, tenant.ID, cursor)
		})

		require.NoError(t, err)
		found, err := NewGormTenantRepository(db).FindByID(ctx, tenant.ID)
		require.NoError(t, err)
		assert.True(t, found.Balance.Equal(decimal.NewFromInt(-1)))
		assert.True(t, found.LastCollected.Equal(cursor))

		from, err := metering.LabelFromCanonical("2026031500")
		require.NoError(t, err)
		to, err := metering.LabelFromCanonical("2026031523")
		require.NoError(t, err)
		rows, err := NewGormUsageRowRepository(db).FindForPeriod(ctx, tenant.ScopeID, from, to)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("an error rolls the whole window back", func(t *testing.T) {
		db := setupCollectScopeTestDB(t)
		scope := NewGormCollectScope(db)
		tenant := newTenant(t, db)
		row := newTestRow(t, tenant.ScopeID, "vm-1", "compute.small", "2026031510")

		err := scope.Execute(ctx, func(repos collect.TransactionalRepositories) error {
			if err := repos.UsageRows().Save(ctx, row); err != nil {
				return err
			}
			if err := repos.Tenants().ChargeBalance(ctx, tenant.ID, decimal.NewFromInt(1), "EUR"); err != nil {
				return err
			}
			return errors.New("advance failed")
		})

		require.Error(t, err)
		found, findErr := NewGormTenantRepository(db).FindByID(ctx, tenant.ID)
		require.NoError(t, findErr)
		assert.True(t, found.Balance.Equal(decimal.Zero))
		assert.True(t, found.LastCollected.Equal(tenant.LastCollected))

		from, labelErr := metering.LabelFromCanonical("2026031500")
		require.NoError(t, labelErr)
		to, labelErr := metering.LabelFromCanonical("2026031523")
		require.NoError(t, labelErr)
		rows, rowsErr := NewGormUsageRowRepository(db).FindForPeriod(ctx, tenant.ScopeID, from, to)
		require.NoError(t, rowsErr)
		assert.Empty(t, rows)
	})
}

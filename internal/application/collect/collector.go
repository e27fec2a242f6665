package collect

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/identity"
	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/domain/pricing"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/infrastructure/lock"
	"github.com/cloudbill/backend/internal/infrastructure/logger"
	inframetering "github.com/cloudbill/backend/internal/infrastructure/metering"
	"github.com/cloudbill/backend/internal/infrastructure/transform"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config carries the collector's tunables
type Config struct {
	// Meters are the metering streams fetched for every tenant.
	Meters []transform.Meter

	// FetchMargin widens the sample fetch range on both sides of the
	// hour window so strategies see the samples straddling its edges.
	FetchMargin time.Duration

	// LockTTL is the lifetime of a tenant's collection lock. It is
	// refreshed after every committed hour, so it only has to outlive
	// a single window's processing.
	LockTTL time.Duration

	// BusyRetakeTTL and IdleRetakeTTL are the next-eligible-time hints
	// left behind after a tenant finishes. A tenant that produced usage
	// becomes eligible again after BusyRetakeTTL, an idle one after
	// IdleRetakeTTL.
	BusyRetakeTTL time.Duration
	IdleRetakeTTL time.Duration

	// FetchLimit caps the number of samples requested per meter fetch.
	FetchLimit int
}

// DefaultConfig returns the collector defaults
func DefaultConfig() Config {
	return Config{
		FetchMargin:   10 * time.Minute,
		LockTTL:       5 * time.Minute,
		BusyRetakeTTL: time.Minute,
		IdleRetakeTTL: time.Hour,
		FetchLimit:    10000,
	}
}

// CycleStats summarizes one collection pass over all active tenants
type CycleStats struct {
	TenantsProcessed int
	TenantsSkipped   int
	HoursCommitted   int
	RowsPersisted    int
	Errors           int
}

// Collector walks every active tenant's uncollected hour windows,
// converts raw samples into billable usage and commits each hour as one
// transaction. Tenants are serialized by a lock-store mutex so several
// collector processes can run against the same database.
type Collector struct {
	tenants  identity.TenantRepository
	services pricing.ServiceRepository
	source   inframetering.Source
	registry *transform.Registry
	scope    TransactionScope
	locks    lock.Store
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewCollector creates a collector service
func NewCollector(
	tenants identity.TenantRepository,
	services pricing.ServiceRepository,
	source inframetering.Source,
	registry *transform.Registry,
	scope TransactionScope,
	locks lock.Store,
	config Config,
	logger *zap.Logger,
) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		tenants:  tenants,
		services: services,
		source:   source,
		registry: registry,
		scope:    scope,
		locks:    locks,
		config:   config,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunCycle collects every active tenant once. A failure in one tenant
// is logged and counted but never stops the others.
func (c *Collector) RunCycle(ctx context.Context) CycleStats {
	var stats CycleStats

	tenants, err := c.tenants.FindActive(ctx)
	if err != nil {
		c.logger.Error("Failed to list active tenants", zap.Error(err))
		stats.Errors++
		return stats
	}

	for i := range tenants {
		if ctx.Err() != nil {
			break
		}
		tenant := &tenants[i]
		processed, err := c.CollectTenant(ctx, tenant, &stats)
		if err != nil {
			c.logger.Error("Tenant collection failed",
				zap.String("tenant_id", tenant.ID.String()),
				zap.String("tenant_name", tenant.Name),
				zap.Error(err))
			stats.Errors++
			continue
		}
		if processed {
			stats.TenantsProcessed++
		} else {
			stats.TenantsSkipped++
		}
	}

	c.logger.Info("Collection cycle finished",
		zap.Int("tenants_processed", stats.TenantsProcessed),
		zap.Int("tenants_skipped", stats.TenantsSkipped),
		zap.Int("hours_committed", stats.HoursCommitted),
		zap.Int("rows_persisted", stats.RowsPersisted),
		zap.Int("errors", stats.Errors))

	return stats
}

// CollectTenant walks one tenant's uncollected hours under its mutex.
// Returns false if the tenant was locked by another worker or is still
// inside its retake delay.
func (c *Collector) CollectTenant(ctx context.Context, tenant *identity.Tenant, stats *CycleStats) (bool, error) {
	// Everything below this point logs and queries under the tenant's
	// ID, including the gorm logger on the transactional repositories.
	ctx, tlog := logger.WithTenantID(ctx, c.logger, tenant.ID.String())

	mu := lock.NewMutex(c.locks, tenant.MutexName())
	acquired, err := mu.Acquire(ctx, c.config.LockTTL)
	if err != nil {
		return false, fmt.Errorf("failed to acquire collection lock: %w", err)
	}
	if !acquired {
		tlog.Debug("Tenant locked by another worker, skipping")
		return false, nil
	}

	foundUsage := false
	defer func() {
		if _, err := mu.Release(ctx); err != nil {
			tlog.Warn("Failed to release collection lock", zap.Error(err))
			return
		}
		// Leave a short-lived lock behind as the next-eligible-time
		// hint. Other workers skip the tenant until it expires.
		retake := c.config.IdleRetakeTTL
		if foundUsage {
			retake = c.config.BusyRetakeTTL
		}
		hint := lock.NewMutex(c.locks, tenant.MutexName())
		if _, err := hint.Acquire(ctx, retake); err != nil {
			tlog.Warn("Failed to set collection retake hint", zap.Error(err))
		}
	}()

	// Start one minute past the cursor so a cursor sitting exactly on
	// an hour boundary resolves to the following window.
	label := metering.LabelFromTime(tenant.LastCollected.Add(time.Minute))
	nowLabel := metering.LabelFromTime(c.now())

	for label.Before(nowLabel) {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}

		rows, err := c.collectHour(ctx, tenant, label)
		if err != nil {
			// The cursor was not advanced past this window, the next
			// cycle resumes here.
			return true, fmt.Errorf("window %s: %w", label, err)
		}
		if stats != nil {
			stats.HoursCommitted++
			stats.RowsPersisted += rows
		}
		if rows > 0 {
			foundUsage = true
		}

		if err := mu.UpdateTTL(ctx, c.config.LockTTL); err != nil {
			tlog.Warn("Failed to refresh collection lock", zap.Error(err))
		}
		label = label.Next()
	}

	return true, nil
}

// collectHour fetches, transforms and commits a single hour window.
// The usage rows, balance charge and cursor advance commit atomically;
// an error anywhere leaves the window untouched for the next attempt.
func (c *Collector) collectHour(ctx context.Context, tenant *identity.Tenant, label metering.TimeLabel) (int, error) {
	windowStart, windowEnd := label.Range()
	fetchStart := windowStart.Add(-c.config.FetchMargin)
	fetchEnd := windowEnd.Add(c.config.FetchMargin)

	var rows []*billing.UsageRow
	totalCost := decimal.Zero

	for _, meter := range c.config.Meters {
		transformer, err := c.registry.Get(meter.Kind)
		if err != nil {
			return 0, fmt.Errorf("meter %s: %w", meter.Name, err)
		}

		samples, err := c.source.GetUsage(ctx, tenant.ScopeID, meter.Name, fetchStart, fetchEnd, c.config.FetchLimit)
		if err != nil {
			return 0, fmt.Errorf("fetch meter %s: %w", meter.Name, err)
		}
		if len(samples) == 0 {
			continue
		}

		groups := metering.GroupByResource(samples)
		resourceIDs := make([]string, 0, len(groups))
		for id := range groups {
			resourceIDs = append(resourceIDs, id)
		}
		sort.Strings(resourceIDs)

		for _, resourceID := range resourceIDs {
			group := groups[resourceID]
			metering.SortSamples(group)

			usages, err := transformer.Transform(ctx, meter, group, label)
			if err != nil {
				return 0, fmt.Errorf("transform meter %s resource %s: %w", meter.Name, resourceID, err)
			}

			for _, usage := range usages {
				cost, err := c.priceUsage(ctx, tenant, usage)
				if err != nil {
					return 0, err
				}
				row, err := billing.NewUsageRow(tenant.ID, tenant.ScopeID, resourceID, label, usage, cost)
				if err != nil {
					return 0, fmt.Errorf("build usage row for resource %s: %w", resourceID, err)
				}
				rows = append(rows, row)
				totalCost = totalCost.Add(cost)
			}
		}
	}

	if len(rows) == 0 {
		// Nothing billable this hour. The cursor stays put; a later
		// hour with usage advances it past this one in the same pass.
		return 0, nil
	}

	err := c.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		for _, row := range rows {
			if err := repos.UsageRows().Save(ctx, row); err != nil {
				return fmt.Errorf("save usage row: %w", err)
			}
		}
		if totalCost.IsPositive() {
			if err := repos.Tenants().ChargeBalance(ctx, tenant.ID, totalCost, tenant.Currency); err != nil {
				return fmt.Errorf("charge balance: %w", err)
			}
		}
		if err := repos.Tenants().AdvanceCursor(ctx, tenant.ID, windowEnd); err != nil {
			return fmt.Errorf("advance cursor: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	tenant.LastCollected = windowEnd
	tenant.Balance = tenant.Balance.Sub(totalCost)

	logger.FromContext(ctx).Info("Hour window committed",
		zap.String("label", label.Key()),
		zap.Int("rows", len(rows)),
		zap.String("cost", totalCost.String()))

	return len(rows), nil
}

// priceUsage looks up the per-unit price and computes the window cost.
// A service with no price under the tenant's tariff bills at zero; this
// covers freshly auto-registered flavor services.
func (c *Collector) priceUsage(ctx context.Context, tenant *identity.Tenant, usage metering.Usage) (decimal.Decimal, error) {
	price, err := c.services.PriceOf(ctx, usage.ServiceID, tenant.TariffID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			logger.FromContext(ctx).Debug("No price under tariff, billing at zero",
				zap.String("service_id", string(usage.ServiceID)),
				zap.String("tariff_id", tenant.TariffID.String()))
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("price of service %s: %w", usage.ServiceID, err)
	}
	return price.Mul(usage.Volume), nil
}

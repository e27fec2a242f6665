package transform

import (
	"context"
	"sync"
	"time"

	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/domain/pricing"
	"go.uber.org/zap"
)

// volumeTypeCacheTTL bounds how often the volume-type mapping is
// re-read from the catalog.
const volumeTypeCacheTTL = 5 * time.Minute

// volumeTypeCache maps volume-type names to service IDs. The mapping is
// refreshed at most once per TTL interval, plus one immediate refresh
// when an unseen name shows up before falling back.
type volumeTypeCache struct {
	services pricing.ServiceRepository

	mu        sync.Mutex
	types     map[string]metering.ServiceID
	refreshed time.Time
}

func (c *volumeTypeCache) lookup(ctx context.Context, name string) (metering.ServiceID, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.refreshed) >= volumeTypeCacheTTL {
		if err := c.refreshLocked(ctx); err != nil {
			return "", false, err
		}
	}
	if id, ok := c.types[name]; ok {
		return id, true, nil
	}

	// Unseen name: the catalog may have grown since the last refresh.
	if err := c.refreshLocked(ctx); err != nil {
		return "", false, err
	}
	id, ok := c.types[name]
	return id, ok, nil
}

func (c *volumeTypeCache) refreshLocked(ctx context.Context) error {
	types, err := c.services.VolumeTypes(ctx)
	if err != nil {
		return err
	}
	c.types = types
	c.refreshed = time.Now()
	return nil
}

// StorageMax bills the maximum observed volume size converted to bytes,
// mapping the sample's volume type to its catalog service. An unknown
// volume type falls back to the untranslated name so the row is still
// billable under a literal service id.
type StorageMax struct {
	opts   Options
	cache  *volumeTypeCache
	logger *zap.Logger
}

// NewStorageMax creates the storage strategy with its own cache instance
func NewStorageMax(services pricing.ServiceRepository, opts Options, logger *zap.Logger) *StorageMax {
	return &StorageMax{
		opts:   opts,
		cache:  &volumeTypeCache{services: services},
		logger: logger,
	}
}

// Name implements Transformer
func (t *StorageMax) Name() Kind {
	return KindStorageMax
}

// Transform implements Transformer
func (t *StorageMax) Transform(ctx context.Context, meter Meter, samples []metering.RawSample, label metering.TimeLabel) ([]metering.Usage, error) {
	windowed := inWindow(samples, label)
	if len(windowed) == 0 {
		return nil, nil
	}

	peak := windowed[0]
	for _, s := range windowed[1:] {
		if s.Volume.GreaterThan(peak.Volume) {
			peak = s
		}
	}

	unit := peak.Unit
	if unit == "" {
		unit = meter.Unit
	}
	volume, err := metering.ToBytes(peak.Volume, unit)
	if err != nil {
		return nil, err
	}

	typeName, err := peak.Meta(t.opts.VolumeTypeKey)
	if err != nil {
		return nil, err
	}
	serviceID, found, err := t.cache.lookup(ctx, typeName)
	if err != nil {
		return nil, err
	}
	if !found {
		t.logger.Warn("Unknown volume type, billing under untranslated name",
			zap.String("volume_type", typeName),
			zap.String("resource_id", peak.ResourceID),
		)
		serviceID = metering.ServiceID(typeName)
	}

	windowStart, windowEnd := label.Range()
	start := samples[0].Timestamp
	if start.Before(windowStart) {
		start = windowStart
	}
	end := samples[len(samples)-1].Timestamp
	if end.After(windowEnd) {
		end = windowEnd
	}

	return []metering.Usage{{
		ServiceID:    serviceID,
		Volume:       volume,
		ResourceName: resourceName(samples, t.opts.ResourceNameKey),
		Start:        start,
		End:          end,
	}}, nil
}

package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/domain/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Uptime walks the ordered sample stream as a state machine tracking
// the currently active flavor. Each flavor seen running during the window
// yields one Usage spanning the time it was active, clamped to the
// window edges. An unknown flavor registers a fixed service entry
// instead of failing the window.
type Uptime struct {
	opts     Options
	services pricing.ServiceRepository
	logger   *zap.Logger
}

// NewUptime creates the uptime strategy
func NewUptime(services pricing.ServiceRepository, opts Options, logger *zap.Logger) *Uptime {
	return &Uptime{
		opts:     opts,
		services: services,
		logger:   logger,
	}
}

// Name implements Transformer
func (t *Uptime) Name() Kind {
	return KindUptime
}

// flavorSpan accumulates the active time of one flavor within a window
type flavorSpan struct {
	start time.Time
	end   time.Time
}

// Transform implements Transformer
func (t *Uptime) Transform(ctx context.Context, meter Meter, samples []metering.RawSample, label metering.TimeLabel) ([]metering.Usage, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	windowStart, windowEnd := label.Range()

	spans := make(map[string]*flavorSpan)
	order := make([]string, 0, 1)
	extend := func(flavor string, start, end time.Time) {
		if start.Before(windowStart) {
			start = windowStart
		}
		if end.After(windowEnd) {
			end = windowEnd
		}
		if !start.Before(end) && !start.Equal(end) {
			return
		}
		span, exists := spans[flavor]
		if !exists {
			spans[flavor] = &flavorSpan{start: start, end: end}
			order = append(order, flavor)
			return
		}
		if start.Before(span.start) {
			span.start = start
		}
		if end.After(span.end) {
			span.end = end
		}
	}

	var openFlavor string
	var openStart time.Time
	for _, s := range samples {
		if !t.isTracked(s.Volume) {
			if openFlavor != "" {
				extend(openFlavor, openStart, s.Timestamp)
				openFlavor = ""
			}
			continue
		}

		flavor, err := s.Meta(t.opts.FlavorKey)
		if err != nil {
			return nil, err
		}
		if openFlavor == "" {
			openFlavor = flavor
			openStart = s.Timestamp
			continue
		}
		if flavor != openFlavor {
			// Resize: close the old flavor at the transition point.
			extend(openFlavor, openStart, s.Timestamp)
			openFlavor = flavor
			openStart = s.Timestamp
		}
	}
	if openFlavor != "" {
		// Still running at the last sample: the interval extends to the
		// window edge rather than stopping at the sample.
		extend(openFlavor, openStart, windowEnd)
	}

	var usages []metering.Usage
	for _, flavor := range order {
		span := spans[flavor]
		serviceID, err := t.resolveService(ctx, flavor)
		if err != nil {
			return nil, err
		}
		usages = append(usages, metering.Usage{
			ServiceID:    serviceID,
			Volume:       decimal.NewFromInt(1),
			ResourceName: resourceName(samples, t.opts.ResourceNameKey),
			Start:        span.start,
			End:          span.end,
		})
	}
	return usages, nil
}

func (t *Uptime) isTracked(state decimal.Decimal) bool {
	for _, tracked := range t.opts.TrackedStates {
		if state.Equal(tracked) {
			return true
		}
	}
	return false
}

// resolveService maps a flavor name to its catalog service, registering
// a fixed entry on first sight. Registration is idempotent by name, so
// two concurrent collectors racing on the same unknown flavor both end
// up with the same service.
func (t *Uptime) resolveService(ctx context.Context, flavor string) (metering.ServiceID, error) {
	svc, err := t.services.FindByName(ctx, flavor)
	if err == nil && svc != nil {
		return svc.ServiceID, nil
	}

	registered, err := t.services.RegisterFixed(ctx, flavor)
	if err != nil {
		return "", fmt.Errorf("failed to register service for flavor '%s': %w", flavor, err)
	}
	t.logger.Info("Registered service for unknown flavor",
		zap.String("flavor", flavor),
		zap.String("service_id", string(registered.ServiceID)),
	)
	return registered.ServiceID, nil
}

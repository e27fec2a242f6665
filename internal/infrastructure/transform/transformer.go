package transform

import (
	"context"
	"fmt"

	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/domain/pricing"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Kind names one of the closed set of sample-to-usage conversion
// strategies. New kinds are added by recompilation; meters are a small,
// fixed set and dynamic registration buys nothing here.
type Kind string

const (
	KindGaugeMax       Kind = "gauge_max"
	KindGaugeSum       Kind = "gauge_sum"
	KindStorageMax     Kind = "storage_max"
	KindUptime         Kind = "uptime"
	KindFromImage      Kind = "from_image"
	KindThresholdGauge Kind = "threshold_gauge"
)

// Transformer converts one resource's sample stream for one hour window
// into billable usage. Samples are pre-sorted ascending by timestamp and
// scoped to a single resource; they may extend slightly outside the
// window because the collector fetches with a margin.
type Transformer interface {
	Name() Kind
	Transform(ctx context.Context, meter Meter, samples []metering.RawSample, label metering.TimeLabel) ([]metering.Usage, error)
}

// Meter binds a named metering stream to one transformer and, for the
// kinds with a fixed target service, to the service billed for it.
type Meter struct {
	Name      string
	Kind      Kind
	ServiceID metering.ServiceID
	Unit      string
}

// Options carries the tunables of the individual strategies. The zero
// value is completed by DefaultOptions.
type Options struct {
	// TrackedStates are the raw gauge values treated as "running" by
	// the uptime strategy.
	TrackedStates []decimal.Decimal

	// FlavorKey is the metadata key carrying the active flavor name.
	FlavorKey string

	// VolumeTypeKey is the metadata key carrying a volume's type name.
	VolumeTypeKey string

	// ResourceNameKey is the metadata key carrying a display name.
	ResourceNameKey string

	// ImageSizeKeys are the metadata keys scanned for a root disk size.
	ImageSizeKeys []string

	// ImageNoneValue is the sentinel marking "no image size" metadata.
	ImageNoneValue string

	// ThresholdActiveValue is the raw value meaning "service active".
	ThresholdActiveValue decimal.Decimal

	// ThresholdVolume is the constant volume emitted per active window.
	ThresholdVolume decimal.Decimal
}

// DefaultOptions returns the conventional metering source attribute keys
func DefaultOptions() Options {
	return Options{
		TrackedStates:        []decimal.Decimal{decimal.NewFromInt(1)},
		FlavorKey:            "flavor.name",
		VolumeTypeKey:        "volume_type",
		ResourceNameKey:      "display_name",
		ImageSizeKeys:        []string{"image_meta.min_disk", "root_gb"},
		ImageNoneValue:       "none",
		ThresholdActiveValue: decimal.NewFromInt(1),
		ThresholdVolume:      decimal.NewFromInt(1),
	}
}

// Registry holds the closed set of transformer strategies, constructed
// once at startup. No ambient state: every cache a strategy needs is
// owned by the strategy instance.
type Registry struct {
	transformers map[Kind]Transformer
}

// NewRegistry constructs all six strategies with their dependencies
func NewRegistry(services pricing.ServiceRepository, opts Options, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	transformers := map[Kind]Transformer{
		KindGaugeMax:       &GaugeMax{opts: opts},
		KindGaugeSum:       &GaugeSum{opts: opts},
		KindStorageMax:     NewStorageMax(services, opts, logger),
		KindUptime:         NewUptime(services, opts, logger),
		KindFromImage:      &FromImage{opts: opts},
		KindThresholdGauge: &ThresholdGauge{opts: opts},
	}
	return &Registry{transformers: transformers}
}

// Get returns the strategy for a kind
func (r *Registry) Get(kind Kind) (Transformer, error) {
	t, exists := r.transformers[kind]
	if !exists {
		return nil, fmt.Errorf("%w: transformer '%s' not found", shared.ErrNotFound, kind)
	}
	return t, nil
}

// Kinds returns the names of all registered strategies
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.transformers))
	for k := range r.transformers {
		kinds = append(kinds, k)
	}
	return kinds
}

// inWindow filters samples to those whose timestamp falls inside the
// label's inclusive range, preserving order.
func inWindow(samples []metering.RawSample, label metering.TimeLabel) []metering.RawSample {
	start, end := label.Range()
	var out []metering.RawSample
	for _, s := range samples {
		if s.Timestamp.Before(start) || s.Timestamp.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// resourceName extracts a human-readable resource name from sample
// metadata, falling back to the resource ID.
func resourceName(samples []metering.RawSample, key string) string {
	for _, s := range samples {
		if name, ok := s.Metadata[key]; ok && name != "" {
			return name
		}
	}
	if len(samples) > 0 {
		return samples[0].ResourceID
	}
	return ""
}

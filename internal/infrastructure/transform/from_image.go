package transform

import (
	"context"

	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/shopspring/decimal"
)

// FromImage bills the largest root disk size advertised by the samples'
// image metadata. Samples carrying the configured "none" sentinel are
// skipped; nothing is emitted unless a positive size was seen.
type FromImage struct {
	opts Options
}

// Name implements Transformer
func (t *FromImage) Name() Kind {
	return KindFromImage
}

// Transform implements Transformer
func (t *FromImage) Transform(_ context.Context, meter Meter, samples []metering.RawSample, label metering.TimeLabel) ([]metering.Usage, error) {
	windowed := inWindow(samples, label)
	if len(windowed) == 0 {
		return nil, nil
	}

	max := decimal.Zero
	for _, s := range windowed {
		for _, key := range t.opts.ImageSizeKeys {
			raw, ok := s.Metadata[key]
			if !ok || raw == t.opts.ImageNoneValue {
				continue
			}
			size, err := decimal.NewFromString(raw)
			if err != nil {
				// Unparseable size metadata is a data error that fails
				// the window, not a skippable sample.
				return nil, err
			}
			if size.GreaterThan(max) {
				max = size
			}
		}
	}
	if !max.IsPositive() {
		return nil, nil
	}

	return []metering.Usage{{
		ServiceID:    meter.ServiceID,
		Volume:       max,
		ResourceName: resourceName(samples, t.opts.ResourceNameKey),
		Start:        samples[0].Timestamp,
		End:          samples[len(samples)-1].Timestamp,
	}}, nil
}

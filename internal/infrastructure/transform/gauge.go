package transform

import (
	"context"

	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/shopspring/decimal"
)

// GaugeMax bills the maximum raw value observed inside the window.
// The emitted span is clipped to the window edges.
type GaugeMax struct {
	opts Options
}

// Name implements Transformer
func (t *GaugeMax) Name() Kind {
	return KindGaugeMax
}

// Transform implements Transformer
func (t *GaugeMax) Transform(_ context.Context, meter Meter, samples []metering.RawSample, label metering.TimeLabel) ([]metering.Usage, error) {
	windowed := inWindow(samples, label)
	if len(windowed) == 0 {
		return nil, nil
	}

	max := windowed[0].Volume
	for _, s := range windowed[1:] {
		if s.Volume.GreaterThan(max) {
			max = s.Volume
		}
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
		ServiceID:    meter.ServiceID,
		Volume:       max,
		ResourceName: resourceName(samples, t.opts.ResourceNameKey),
		Start:        start,
		End:          end,
	}}, nil
}

// GaugeSum bills the sum of raw values observed inside the window.
// The emitted span deliberately uses the raw first and last sample
// timestamps without clipping to the window edges; report totals depend
// on this, so it must not be "fixed" to match GaugeMax.
type GaugeSum struct {
	opts Options
}

// Name implements Transformer
func (t *GaugeSum) Name() Kind {
	return KindGaugeSum
}

// Transform implements Transformer
func (t *GaugeSum) Transform(_ context.Context, meter Meter, samples []metering.RawSample, label metering.TimeLabel) ([]metering.Usage, error) {
	windowed := inWindow(samples, label)
	if len(windowed) == 0 {
		return nil, nil
	}

	sum := decimal.Zero
	for _, s := range windowed {
		sum = sum.Add(s.Volume)
	}

	return []metering.Usage{{
		ServiceID:    meter.ServiceID,
		Volume:       sum,
		ResourceName: resourceName(samples, t.opts.ResourceNameKey),
		Start:        samples[0].Timestamp,
		End:          samples[len(samples)-1].Timestamp,
	}}, nil
}

// ThresholdGauge emits a constant "active" volume when any in-window
// sample carries the configured active-state value, and nothing
// otherwise. Used for on/off network services billed per active hour.
type ThresholdGauge struct {
	opts Options
}

// Name implements Transformer
func (t *ThresholdGauge) Name() Kind {
	return KindThresholdGauge
}

// Transform implements Transformer
func (t *ThresholdGauge) Transform(_ context.Context, meter Meter, samples []metering.RawSample, label metering.TimeLabel) ([]metering.Usage, error) {
	active := false
	for _, s := range inWindow(samples, label) {
		if s.Volume.Equal(t.opts.ThresholdActiveValue) {
			active = true
			break
		}
	}
	if !active {
		return nil, nil
	}

	start, end := label.Range()
	return []metering.Usage{{
		ServiceID:    meter.ServiceID,
		Volume:       t.opts.ThresholdVolume,
		ResourceName: resourceName(samples, t.opts.ResourceNameKey),
		Start:        start,
		End:          end,
	}}, nil
}

package metering

import (
	"sort"
	"strings"
	"time"

	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ServiceID identifies a billable service in the pricing catalog.
type ServiceID string

// RawSample is one metering data point as delivered by the metering
// source. Samples are read-only to the pipeline; they may arrive out of
// order and must be sorted before transformation.
type RawSample struct {
	Timestamp  time.Time
	ResourceID string
	Volume     decimal.Decimal
	Unit       string
	Metadata   map[string]string
}

// Meta returns the metadata value for key, or an error if it is absent.
// Missing required metadata is a data error that fails the whole window.
func (s RawSample) Meta(key string) (string, error) {
	v, ok := s.Metadata[key]
	if !ok {
		return "", shared.NewDomainError("MALFORMED_SAMPLE", "Sample is missing required metadata key: "+key)
	}
	return v, nil
}

// SortSamples orders samples ascending by timestamp in place.
func SortSamples(samples []RawSample) {
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
}

// GroupByResource splits a mixed sample batch into per-resource groups.
func GroupByResource(samples []RawSample) map[string][]RawSample {
	groups := make(map[string][]RawSample)
	for _, s := range samples {
		groups[s.ResourceID] = append(groups[s.ResourceID], s)
	}
	return groups
}

// Usage is one billable quantity for one resource over a concrete time
// span within a collection window. A transformer may emit several Usage
// records per resource per window.
type Usage struct {
	ServiceID    ServiceID
	Volume       decimal.Decimal
	ResourceName string
	Start        time.Time
	End          time.Time
}

// unitMultipliers maps metering source units to bytes.
var unitMultipliers = map[string]int64{
	"b":   1,
	"kb":  1 << 10,
	"mb":  1 << 20,
	"gb":  1 << 30,
	"tb":  1 << 40,
	"kib": 1 << 10,
	"mib": 1 << 20,
	"gib": 1 << 30,
	"tib": 1 << 40,
}

// ToBytes converts a volume expressed in the given unit to bytes.
// Unknown units fail rather than silently billing the wrong magnitude.
func ToBytes(volume decimal.Decimal, unit string) (decimal.Decimal, error) {
	mult, ok := unitMultipliers[strings.ToLower(unit)]
	if !ok {
		return decimal.Zero, shared.NewDomainError("UNKNOWN_UNIT", "Cannot convert unit to bytes: "+unit)
	}
	return volume.Mul(decimal.NewFromInt(mult)), nil
}

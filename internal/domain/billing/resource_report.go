package billing

import (
	"sort"

	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/domain/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ResourceUsage is one surviving interval of a ResourceReport: the
// usage of a single resource over [MinLabel, MaxLabel] with a constant
// measured volume. Records grow by absorbing neighbors and are never
// split after creation.
type ResourceUsage struct {
	ResourceID   string
	ResourceName string
	ServiceID    metering.ServiceID
	Volume       decimal.Decimal
	Cost         decimal.Decimal
	TimeUsage    int64 // accumulated covered seconds
	MinLabel     metering.TimeLabel
	MaxLabel     metering.TimeLabel

	// labels is the set of raw hour keys this record represents.
	// Sets of different records for the same resource stay disjoint.
	labels map[string]struct{}
}

// Hours returns how many raw hour buckets the record represents
func (u *ResourceUsage) Hours() int {
	return len(u.labels)
}

// absorb folds a right-adjacent record into u. The caller has already
// checked volume equality and adjacency.
func (u *ResourceUsage) absorb(other *ResourceUsage) {
	u.Cost = u.Cost.Add(other.Cost)
	u.TimeUsage += other.TimeUsage
	if other.MinLabel.Before(u.MinLabel) {
		u.MinLabel = other.MinLabel
	}
	if other.MaxLabel.After(u.MaxLabel) {
		u.MaxLabel = other.MaxLabel
	}
	for k := range other.labels {
		u.labels[k] = struct{}{}
	}
}

// resourceKey separates accumulation per resource and service so usage
// of two different services on the same resource never cross-merges.
type resourceKey struct {
	resourceID string
	serviceID  metering.ServiceID
}

// ResourceReport accumulates stored usage rows into compact billing
// intervals. Adjacent hour buckets of the same resource merge into one
// interval when their measured volume is identical; quantity-billed
// services keep each hour as its own record.
type ResourceReport struct {
	kinds  map[metering.ServiceID]pricing.ServiceKind
	byHour map[resourceKey]map[string]*ResourceUsage
	logger *zap.Logger
}

// NewResourceReport creates an empty report. kinds classifies services
// as duration- or quantity-billed; unknown services default to duration.
func NewResourceReport(kinds map[metering.ServiceID]pricing.ServiceKind, logger *zap.Logger) *ResourceReport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceReport{
		kinds:  kinds,
		byHour: make(map[resourceKey]map[string]*ResourceUsage),
		logger: logger,
	}
}

// AddUsage absorbs one stored row into the report. A row whose hour is
// already represented for its resource indicates an upstream collection
// bug: it is logged and discarded, the first record wins.
func (r *ResourceReport) AddUsage(row UsageRow) {
	key := resourceKey{resourceID: row.ResourceID, serviceID: row.ServiceID}
	hours := r.byHour[key]
	if hours == nil {
		hours = make(map[string]*ResourceUsage)
		r.byHour[key] = hours
	}

	labelKey := row.Label.Key()
	if _, exists := hours[labelKey]; exists {
		r.logger.Warn("Duplicate usage row for hour discarded",
			zap.String("resource_id", row.ResourceID),
			zap.String("service_id", string(row.ServiceID)),
			zap.String("label", labelKey),
		)
		return
	}

	rec := &ResourceUsage{
		ResourceID:   row.ResourceID,
		ResourceName: row.ResourceName,
		ServiceID:    row.ServiceID,
		Volume:       row.Volume,
		Cost:         row.Cost,
		TimeUsage:    row.TimeUsage(),
		MinLabel:     row.Label,
		MaxLabel:     row.Label,
		labels:       map[string]struct{}{labelKey: {}},
	}
	hours[labelKey] = rec

	if r.kinds[row.ServiceID] == pricing.ServiceKindQuantity {
		return
	}

	// Fold the left neighbor first so a three-way match collapses into
	// the leftmost record.
	if left := hours[row.Label.Previous().Key()]; left != nil && left.Volume.Equal(rec.Volume) {
		left.absorb(rec)
		r.reindex(hours, rec, left)
		rec = left
	}
	if right := hours[row.Label.Next().Key()]; right != nil && right != rec && right.Volume.Equal(rec.Volume) {
		rec.absorb(right)
		r.reindex(hours, right, rec)
	}
}

// reindex repoints every hour of old at merged
func (r *ResourceReport) reindex(hours map[string]*ResourceUsage, old, merged *ResourceUsage) {
	for k := range old.labels {
		hours[k] = merged
	}
}

// Intervals returns the deduplicated surviving records sorted by start
// label. This is the data rendered into a bill.
func (r *ResourceReport) Intervals() []*ResourceUsage {
	seen := make(map[*ResourceUsage]struct{})
	var out []*ResourceUsage
	for _, hours := range r.byHour {
		for _, rec := range hours {
			if _, ok := seen[rec]; ok {
				continue
			}
			seen[rec] = struct{}{}
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MinLabel.Key() != out[j].MinLabel.Key() {
			return out[i].MinLabel.Before(out[j].MinLabel)
		}
		if out[i].ResourceID != out[j].ResourceID {
			return out[i].ResourceID < out[j].ResourceID
		}
		return out[i].ServiceID < out[j].ServiceID
	})
	return out
}

// TotalCost sums the cost of all surviving intervals
func (r *ResourceReport) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, rec := range r.Intervals() {
		total = total.Add(rec.Cost)
	}
	return total
}

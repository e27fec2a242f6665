// Package billing provides the domain model for hour-bucketed billable
// usage in a multi-tenant metering pipeline.
//
// This package implements the usage bookkeeping bounded context, which is
// responsible for:
//   - Representing persisted usage rows (one billable quantity for one
//     resource within one hour window)
//   - Merging adjacent hour buckets that share the same measured state
//     into compact billing intervals
//
// Key types:
//   - UsageRow: Immutable persisted record of one window's usage
//   - ResourceReport: Interval-merging accumulator fed by stored rows
//   - ResourceUsage: One surviving interval of a report
//
// The billing domain integrates with:
//   - Metering domain: For time labels, samples and service identifiers
//   - Pricing domain: For service kinds and per-unit prices
package billing

package pricing

import (
	"context"
	"strings"

	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceKind distinguishes how a service's usage is billed over time.
type ServiceKind string

const (
	// ServiceKindDuration bills by elapsed time; adjacent hour buckets
	// with the same volume are merged into billing intervals.
	ServiceKindDuration ServiceKind = "duration"

	// ServiceKindQuantity bills by count; every hour stays its own
	// line item and never merges.
	ServiceKindQuantity ServiceKind = "quantity"
)

// Service is one entry of the pricing catalog: a billable service a
// usage row can reference.
type Service struct {
	shared.BaseEntity
	ServiceID   metering.ServiceID
	Name        string
	Description string
	Kind        ServiceKind
}

// NewService creates a catalog entry with a derived service ID
func NewService(name string, kind ServiceKind) (*Service, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Service name cannot be empty")
	}
	if kind != ServiceKindDuration && kind != ServiceKindQuantity {
		return nil, shared.NewDomainError("INVALID_KIND", "Unknown service kind: "+string(kind))
	}
	return &Service{
		BaseEntity: shared.NewBaseEntity(),
		ServiceID:  metering.ServiceID(name),
		Name:       name,
		Kind:       kind,
	}, nil
}

// Price is the per-unit price of a service under one tariff.
type Price struct {
	ServiceID metering.ServiceID
	TariffID  uuid.UUID
	Amount    decimal.Decimal
	Currency  string
}

// ServiceRepository is the pricing catalog consulted by the pipeline.
type ServiceRepository interface {
	// PriceOf looks up the per-unit price of a service under a tariff.
	PriceOf(ctx context.Context, serviceID metering.ServiceID, tariffID uuid.UUID) (decimal.Decimal, error)

	FindByName(ctx context.Context, name string) (*Service, error)

	// RegisterFixed creates a duration-billed service entry for an
	// unknown name. Idempotent: registering an existing name returns
	// the existing entry.
	RegisterFixed(ctx context.Context, name string) (*Service, error)

	// VolumeTypes returns the volume-type name to service ID mapping
	// used by storage metering.
	VolumeTypes(ctx context.Context) (map[string]metering.ServiceID, error)

	FindKinds(ctx context.Context) (map[metering.ServiceID]ServiceKind, error)
}

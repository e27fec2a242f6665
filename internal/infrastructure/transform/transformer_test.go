package transform

import (
	"context"
	"testing"
	"time"

	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/domain/pricing"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeServiceRepository is an in-memory pricing catalog for strategy tests.
type fakeServiceRepository struct {
	services    map[string]*pricing.Service
	volumeTypes map[string]metering.ServiceID

	volumeTypeCalls int
	registered      []string
}

func newFakeServiceRepository() *fakeServiceRepository {
	return &fakeServiceRepository{
		services:    make(map[string]*pricing.Service),
		volumeTypes: make(map[string]metering.ServiceID),
	}
}

func (f *fakeServiceRepository) PriceOf(_ context.Context, _ metering.ServiceID, _ uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, shared.ErrNotFound
}

func (f *fakeServiceRepository) FindByName(_ context.Context, name string) (*pricing.Service, error) {
	svc, ok := f.services[name]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return svc, nil
}

func (f *fakeServiceRepository) RegisterFixed(_ context.Context, name string) (*pricing.Service, error) {
	if svc, ok := f.services[name]; ok {
		return svc, nil
	}
	svc, err := pricing.NewService(name, pricing.ServiceKindDuration)
	if err != nil {
		return nil, err
	}
	f.services[name] = svc
	f.registered = append(f.registered, name)
	return svc, nil
}

func (f *fakeServiceRepository) VolumeTypes(_ context.Context) (map[string]metering.ServiceID, error) {
	f.volumeTypeCalls++
	out := make(map[string]metering.ServiceID, len(f.volumeTypes))
	for k, v := range f.volumeTypes {
		out[k] = v
	}
	return out, nil
}

func (f *fakeServiceRepository) FindKinds(_ context.Context) (map[metering.ServiceID]pricing.ServiceKind, error) {
	kinds := make(map[metering.ServiceID]pricing.ServiceKind)
	for _, svc := range f.services {
		kinds[svc.ServiceID] = svc.Kind
	}
	return kinds, nil
}

// testLabel is the hour window shared by the strategy tests.
func testLabel(t *testing.T) metering.TimeLabel {
	t.Helper()
	label, err := metering.LabelFromCanonical("2026031514")
	require.NoError(t, err)
	return label
}

// at builds a timestamp offset from the test window's start.
func at(t *testing.T, offset time.Duration) time.Time {
	t.Helper()
	return testLabel(t).Start().Add(offset)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(newFakeServiceRepository(), DefaultOptions(), zap.NewNop())

	t.Run("resolves every kind", func(t *testing.T) {
		for _, kind := range []Kind{KindGaugeMax, KindGaugeSum, KindStorageMax, KindUptime, KindFromImage, KindThresholdGauge} {
			tr, err := registry.Get(kind)
			require.NoError(t, err, "kind %s", kind)
			assert.Equal(t, kind, tr.Name())
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := registry.Get(Kind("bogus"))

		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("lists all kinds", func(t *testing.T) {
		assert.Len(t, registry.Kinds(), 6)
	})
}

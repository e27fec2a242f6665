package pricing

import (
	"testing"

	"github.com/cloudbill/backend/internal/domain/metering"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	t.Run("creates duration service", func(t *testing.T) {
		svc, err := NewService("compute.small", ServiceKindDuration)

		require.NoError(t, err)
		assert.Equal(t, metering.ServiceID("compute.small"), svc.ServiceID)
		assert.Equal(t, "compute.small", svc.Name)
		assert.Equal(t, ServiceKindDuration, svc.Kind)
	})

	t.Run("creates quantity service", func(t *testing.T) {
		svc, err := NewService("floating.ip", ServiceKindQuantity)

		require.NoError(t, err)
		assert.Equal(t, ServiceKindQuantity, svc.Kind)
	})

	t.Run("fails with blank name", func(t *testing.T) {
		svc, err := NewService("  ", ServiceKindDuration)

		assert.Error(t, err)
		assert.Nil(t, svc)
		assert.Contains(t, err.Error(), "Service name cannot be empty")
	})

	t.Run("fails with unknown kind", func(t *testing.T) {
		svc, err := NewService("compute.small", ServiceKind("hourly"))

		assert.Error(t, err)
		assert.Nil(t, svc)
		assert.Contains(t, err.Error(), "Unknown service kind")
	})
}
